package bootstrap

import (
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/dheysonavelleda/radiestesia-agendamento/internal/config"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/notify"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// BuildEmailSender selects the sender named by EMAIL_PROVIDER. Missing
// credentials fall back to the stub sender, which only logs.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("SENDGRID_API_KEY not set, using stub email sender")
	case "ses":
		if awsCfg != nil {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFromAddress,
				FromName:  cfg.EmailFromName,
			}, logger)
		}
		logger.Warn("aws config unavailable, using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildRenderer configures email templates for the practice.
func BuildRenderer(cfg *appconfig.Config, loc *time.Location) *notify.Renderer {
	return notify.NewRenderer(notify.RendererConfig{
		PractitionerName: cfg.PractitionerName,
		PublicBaseURL:    cfg.PublicBaseURL,
		Location:         loc,
	})
}

// BuildQueue returns the SQS notification queue, or an in-memory queue when
// USE_MEMORY_QUEUE is set. The memory queue only works when the producer and
// the notify worker share a process.
func BuildQueue(cfg *appconfig.Config, awsCfg *aws.Config) (notify.Queue, error) {
	if cfg.UseMemoryQueue {
		return notify.NewMemoryQueue(256), nil
	}
	if strings.TrimSpace(cfg.NotificationQueueURL) == "" {
		return nil, errors.New("bootstrap: NOTIFICATION_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	if awsCfg == nil {
		return nil, errors.New("bootstrap: aws config is required for the SQS queue")
	}
	return notify.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.NotificationQueueURL), nil
}
