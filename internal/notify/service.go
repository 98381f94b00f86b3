package notify

import (
	"context"
	"fmt"

	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// Service renders and sends emails synchronously.
type Service struct {
	email    EmailSender
	renderer *Renderer
	logger   *logging.Logger
}

// NewService creates a direct notification service.
func NewService(email EmailSender, renderer *Renderer, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if renderer == nil {
		renderer = NewRenderer(RendererConfig{})
	}
	return &Service{email: email, renderer: renderer, logger: logger}
}

// Notify renders kind for snap and sends it.
func (s *Service) Notify(ctx context.Context, kind Kind, snap Snapshot) error {
	msg, err := s.renderer.Render(kind, snap)
	if err != nil {
		return err
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: email send failed", "error", err, "kind", kind, "appointment_id", snap.AppointmentID)
		return fmt.Errorf("notify: send %s: %w", kind, err)
	}
	s.logger.Info("notification sent", "kind", kind, "appointment_id", snap.AppointmentID)
	return nil
}

func (s *Service) SendConfirmation(ctx context.Context, snap Snapshot) error {
	return s.Notify(ctx, KindConfirmation, snap)
}

func (s *Service) SendReminder(ctx context.Context, snap Snapshot) error {
	return s.Notify(ctx, KindSessionReminder, snap)
}

func (s *Service) SendCancellation(ctx context.Context, snap Snapshot) error {
	return s.Notify(ctx, KindCancellation, snap)
}

func (s *Service) SendPaymentReminder(ctx context.Context, snap Snapshot) error {
	return s.Notify(ctx, KindPaymentReminder, snap)
}

func (s *Service) SendFeedbackRequest(ctx context.Context, snap Snapshot) error {
	return s.Notify(ctx, KindFeedback, snap)
}

var _ Notifier = (*Service)(nil)
