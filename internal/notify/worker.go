package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// ProviderNotify namespaces sent jobs in the processed-event store.
const ProviderNotify = "notify"

const (
	defaultWorkerCount    = 2
	defaultWaitSeconds    = 10
	defaultBatchSize      = 5
	maxWaitSeconds        = 20
	maxReceiveBatchSize   = 10
	deleteTimeoutSeconds  = 5
	maxReceiveBackoff     = 5 * time.Second
	initialReceiveBackoff = time.Second
)

type sentTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type jobSender interface {
	Notify(ctx context.Context, kind Kind, snap Snapshot) error
}

// Worker consumes notification jobs from the queue and sends them.
type Worker struct {
	sender    jobSender
	queue     Queue
	processed sentTracker
	logger    *logging.Logger

	workers     int
	waitSeconds int
	batchSize   int
	wg          sync.WaitGroup
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(w *Worker) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		w.waitSeconds = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		w.batchSize = size
	}
}

// WithSentTracker skips jobs already sent, e.g. after an SQS redelivery.
func WithSentTracker(tracker sentTracker) WorkerOption {
	return func(w *Worker) {
		w.processed = tracker
	}
}

func NewWorker(sender jobSender, queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if sender == nil {
		panic("notify: sender cannot be nil")
	}
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		sender:      sender,
		queue:       queue,
		logger:      logger,
		workers:     defaultWorkerCount,
		waitSeconds: defaultWaitSeconds,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the consumer goroutines.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notify worker started", "worker_id", workerID)

	backoff := initialReceiveBackoff
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("notify worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive notification jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxReceiveBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = initialReceiveBackoff

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage deletes the message once it is sent or undecodable. Send
// failures are left for SQS to redeliver, or requeued on the memory queue.
func (w *Worker) handleMessage(ctx context.Context, msg QueueMessage) {
	var job Job
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode notification job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if w.processed != nil && job.ID != "" {
		done, err := w.processed.AlreadyProcessed(ctx, ProviderNotify, job.ID)
		if err != nil {
			w.logger.Warn("notify dedupe lookup failed", "error", err, "job_id", job.ID)
		} else if done {
			w.logger.Info("skipping already sent notification", "job_id", job.ID, "kind", job.Kind)
			w.deleteMessage(context.Background(), msg.ReceiptHandle)
			return
		}
	}

	if err := w.sender.Notify(ctx, job.Kind, job.Snapshot); err != nil {
		w.logger.Error("notification job failed", "error", err, "job_id", job.ID, "kind", job.Kind,
			"appointment_id", job.Snapshot.AppointmentID, "attempts", msg.Attempts+1)
		w.retry(ctx, msg, job)
		return
	}

	if w.processed != nil && job.ID != "" {
		if _, err := w.processed.MarkProcessed(ctx, ProviderNotify, job.ID); err != nil {
			w.logger.Warn("notify mark sent failed", "error", err, "job_id", job.ID)
		}
	}
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

// retry hands a failed message back to queues that do not redeliver on
// their own.
func (w *Worker) retry(ctx context.Context, msg QueueMessage, job Job) {
	rq, ok := w.queue.(requeuer)
	if !ok {
		return
	}
	if err := rq.Requeue(ctx, msg); err != nil {
		w.logger.Error("dropping notification job", "error", err, "job_id", job.ID, "kind", job.Kind,
			"appointment_id", job.Snapshot.AppointmentID)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification job", "error", err)
	}
}
