package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// ProviderMercadoPago namespaces processed webhook events.
const ProviderMercadoPago = "mercadopago"

// PaymentEvent is a gateway-confirmed change on one leg.
type PaymentEvent struct {
	Leg        Leg
	ExternalID string
	Status     LegStatus
	// RawStatus is the gateway's own status, e.g. "charged_back".
	RawStatus string
	Amount    int64
}

// PaymentEventHandler applies gateway events to appointments.
type PaymentEventHandler interface {
	ConfirmOnPayment(ctx context.Context, appointmentID uuid.UUID, evt PaymentEvent) error
	CompleteSecondPixPayment(ctx context.Context, appointmentID uuid.UUID, evt PaymentEvent) error
	RecordPaymentFailure(ctx context.Context, appointmentID uuid.UUID, evt PaymentEvent) error
}

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// WebhookObserver records processed notifications.
type WebhookObserver interface {
	ObserveWebhookEvent(status, leg string)
}

// MercadoPagoWebhookHandler verifies and routes MercadoPago notifications.
type MercadoPagoWebhookHandler struct {
	secret    string
	gateway   Gateway
	events    PaymentEventHandler
	processed processedTracker
	metrics   WebhookObserver
	logger    *logging.Logger
}

func NewMercadoPagoWebhookHandler(secret string, gateway Gateway, events PaymentEventHandler, processed processedTracker, logger *logging.Logger) *MercadoPagoWebhookHandler {
	if gateway == nil || events == nil {
		panic("payments: webhook requires gateway and event handler")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MercadoPagoWebhookHandler{
		secret:    secret,
		gateway:   gateway,
		events:    events,
		processed: processed,
		logger:    logger,
	}
}

func (h *MercadoPagoWebhookHandler) WithMetrics(m WebhookObserver) *MercadoPagoWebhookHandler {
	h.metrics = m
	return h
}

type mpNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func (h *MercadoPagoWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	var note mpNotification
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &note); err != nil {
			h.logger.Warn("mercadopago webhook: undecodable body", "error", err)
		}
	}

	q := r.URL.Query()
	dataID := firstNonEmpty(q.Get("data.id"), rawID(note.Data.ID), q.Get("id"))
	eventType := firstNonEmpty(note.Type, q.Get("type"), q.Get("topic"))

	if !VerifyMercadoPagoSignature(h.secret, r.Header.Get("x-signature"), r.Header.Get("x-request-id"), dataID) {
		h.logger.Warn("mercadopago webhook: invalid signature", "data_id", dataID)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if eventType != "payment" || dataID == "" {
		writeReceived(w)
		return
	}

	if err := h.Process(r.Context(), dataID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindConflict) {
			h.logger.Warn("mercadopago webhook: event not applied", "payment_id", dataID, "error", err)
			writeReceived(w)
			return
		}
		h.logger.Error("mercadopago webhook: processing failed", "payment_id", dataID, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeReceived(w)
}

// Process fetches the charge, deduplicates on id and status, and dispatches
// the transition it implies.
func (h *MercadoPagoWebhookHandler) Process(ctx context.Context, paymentID string) error {
	charge, err := h.gateway.GetChargeStatus(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrChargeNotFound) {
			return apperr.NotFound("charge_not_found", "cobrança não encontrada")
		}
		return fmt.Errorf("payments: webhook fetch charge: %w", err)
	}
	appointmentID, leg, err := ParseReference(charge.Reference)
	if err != nil {
		h.logger.Info("mercadopago webhook: ignoring foreign reference", "payment_id", paymentID, "reference", charge.Reference)
		return nil
	}
	if charge.Status == LegPending {
		return nil
	}

	eventKey := fmt.Sprintf("%s:%s", charge.ExternalID, charge.Status)
	if h.processed != nil {
		done, err := h.processed.AlreadyProcessed(ctx, ProviderMercadoPago, eventKey)
		if err != nil {
			return fmt.Errorf("payments: webhook processed lookup: %w", err)
		}
		if done {
			return nil
		}
	}

	evt := PaymentEvent{Leg: leg, ExternalID: charge.ExternalID, Status: charge.Status, RawStatus: charge.RawStatus, Amount: charge.Amount}
	var dispatchErr error
	switch {
	case charge.Status == LegApproved && leg == LegSecond:
		dispatchErr = h.events.CompleteSecondPixPayment(ctx, appointmentID, evt)
	case charge.Status == LegApproved:
		dispatchErr = h.events.ConfirmOnPayment(ctx, appointmentID, evt)
	default:
		dispatchErr = h.events.RecordPaymentFailure(ctx, appointmentID, evt)
	}
	if dispatchErr != nil && !apperr.Is(dispatchErr, apperr.KindNotFound) && !apperr.Is(dispatchErr, apperr.KindConflict) {
		return dispatchErr
	}
	if h.metrics != nil {
		h.metrics.ObserveWebhookEvent(string(charge.Status), string(leg))
	}

	if h.processed != nil {
		if _, err := h.processed.MarkProcessed(ctx, ProviderMercadoPago, eventKey); err != nil {
			h.logger.Warn("mercadopago webhook: mark processed failed", "event", eventKey, "error", err)
		}
	}
	return dispatchErr
}

func writeReceived(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

// rawID accepts both numeric and string ids.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
