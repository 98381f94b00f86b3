package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

// Queue carries notification jobs between the API and the notify worker.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one received job body.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
	// Attempts counts failed deliveries of a memory queue message.
	Attempts int
}

// requeuer is implemented by queues that lose a message once it is
// received. SQS redelivers on its own after the visibility timeout.
type requeuer interface {
	Requeue(ctx context.Context, msg QueueMessage) error
}

// ErrRetriesExhausted is returned by Requeue once a message has failed too often.
var ErrRetriesExhausted = errors.New("notify: retries exhausted")

// Job is one email waiting to be rendered and sent.
type Job struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Snapshot Snapshot `json:"snapshot"`
}

// Enqueue encodes job and sends it on queue.
func Enqueue(ctx context.Context, queue Queue, job Job) error {
	if !job.Kind.Valid() {
		return fmt.Errorf("notify: unknown job kind %q", job.Kind)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("notify: encode job: %w", err)
	}
	return queue.Send(ctx, string(body))
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue is the notification queue backed by AWS/LocalStack SQS.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("notify: send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("notify: receive SQS messages: %w", err)
	}
	messages := make([]QueueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, QueueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("notify: delete SQS message: %w", err)
	}
	return nil
}

const (
	defaultMemoryMaxAttempts = 5
	defaultMemoryRetryDelay  = 10 * time.Second
)

// MemoryQueue is a queue backed by an in-memory buffered channel.
type MemoryQueue struct {
	ch          chan QueueMessage
	maxAttempts int
	retryDelay  time.Duration
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{
		ch:          make(chan QueueMessage, buffer),
		maxAttempts: defaultMemoryMaxAttempts,
		retryDelay:  defaultMemoryRetryDelay,
	}
}

// Send enqueues a payload or blocks until ctx is done.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	msg := QueueMessage{
		ID:            uuid.NewString(),
		Body:          body,
		ReceiptHandle: uuid.NewString(),
	}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a message is available, ctx is done, or waitSeconds elapses.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case msg := <-q.ch:
		return q.collect(msg, maxMessages), nil
	}
}

// Requeue puts a failed message back after a delay that grows with each
// attempt. It gives up after maxAttempts failures or when the buffer is full.
func (q *MemoryQueue) Requeue(_ context.Context, msg QueueMessage) error {
	msg.Attempts++
	if msg.Attempts >= q.maxAttempts {
		return ErrRetriesExhausted
	}
	delay := time.Duration(msg.Attempts) * q.retryDelay
	if delay <= 0 {
		select {
		case q.ch <- msg:
			return nil
		default:
			return fmt.Errorf("notify: memory queue full")
		}
	}
	time.AfterFunc(delay, func() {
		select {
		case q.ch <- msg:
		default:
		}
	})
	return nil
}

// Delete is a no-op for the in-memory queue.
func (q *MemoryQueue) Delete(context.Context, string) error {
	return nil
}

// Len reports buffered messages.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) collect(first QueueMessage, max int) []QueueMessage {
	messages := make([]QueueMessage, 0, max)
	messages = append(messages, first)
	for len(messages) < max {
		select {
		case msg := <-q.ch:
			messages = append(messages, msg)
		default:
			return messages
		}
	}
	return messages
}
