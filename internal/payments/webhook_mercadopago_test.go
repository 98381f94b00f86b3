package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
)

type recordedEvent struct {
	kind          string
	appointmentID uuid.UUID
	evt           PaymentEvent
}

type stubEventHandler struct {
	events []recordedEvent
	err    error
}

func (s *stubEventHandler) ConfirmOnPayment(_ context.Context, id uuid.UUID, evt PaymentEvent) error {
	s.events = append(s.events, recordedEvent{"confirm", id, evt})
	return s.err
}

func (s *stubEventHandler) CompleteSecondPixPayment(_ context.Context, id uuid.UUID, evt PaymentEvent) error {
	s.events = append(s.events, recordedEvent{"second", id, evt})
	return s.err
}

func (s *stubEventHandler) RecordPaymentFailure(_ context.Context, id uuid.UUID, evt PaymentEvent) error {
	s.events = append(s.events, recordedEvent{"failure", id, evt})
	return s.err
}

type memoryProcessed struct{ seen map[string]bool }

func (m *memoryProcessed) AlreadyProcessed(_ context.Context, provider, id string) (bool, error) {
	return m.seen[provider+"/"+id], nil
}

func (m *memoryProcessed) MarkProcessed(_ context.Context, provider, id string) (bool, error) {
	key := provider + "/" + id
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func webhookRequest(dataID, secret, requestID string) *http.Request {
	body := `{"type":"payment","action":"payment.updated","data":{"id":"` + dataID + `"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago?data.id="+dataID+"&type=payment", strings.NewReader(body))
	req.Header.Set("x-request-id", requestID)
	if secret != "" {
		ts := "1700000000"
		req.Header.Set("x-signature", "ts="+ts+",v1="+SignMercadoPago(secret, SignatureManifest(dataID, requestID, ts)))
	}
	return req
}

func TestWebhookRoutesApprovals(t *testing.T) {
	gw := NewFakeGateway("http://localhost:3000", nil)
	apptID := uuid.New()
	first, _ := gw.CreatePixCharge(context.Background(), PixChargeRequest{Amount: 10000, Reference: FormatReference(apptID, LegFirst)})
	second, _ := gw.CreatePixCharge(context.Background(), PixChargeRequest{Amount: 35000, Reference: FormatReference(apptID, LegSecond)})
	_ = gw.SetStatus(first.ExternalID, LegApproved)
	_ = gw.SetStatus(second.ExternalID, LegApproved)

	events := &stubEventHandler{}
	h := NewMercadoPagoWebhookHandler("secret", gw, events, &memoryProcessed{seen: map[string]bool{}}, nil)

	for _, id := range []string{first.ExternalID, second.ExternalID, first.ExternalID} {
		rec := httptest.NewRecorder()
		h.Handle(rec, webhookRequest(id, "secret", "req-"+id))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	if len(events.events) != 2 {
		t.Fatalf("expected duplicate delivery to be ignored, got %d events", len(events.events))
	}
	if events.events[0].kind != "confirm" || events.events[0].appointmentID != apptID || events.events[0].evt.Leg != LegFirst {
		t.Fatalf("unexpected first dispatch: %+v", events.events[0])
	}
	if events.events[1].kind != "second" || events.events[1].evt.Amount != 35000 {
		t.Fatalf("unexpected second dispatch: %+v", events.events[1])
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	gw := NewFakeGateway("http://localhost:3000", nil)
	events := &stubEventHandler{}
	h := NewMercadoPagoWebhookHandler("secret", gw, events, nil, nil)

	req := webhookRequest("1", "other-secret", "req-1")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(events.events) != 0 {
		t.Fatalf("no event may reach the lifecycle on signature failure")
	}
}

func TestWebhookFailuresAndAcks(t *testing.T) {
	gw := NewFakeGateway("http://localhost:3000", nil)
	apptID := uuid.New()
	card, _ := gw.CreateCardCheckout(context.Background(), CardCheckoutRequest{Amount: CardTotal, Reference: FormatReference(apptID, LegCard), Installments: 2})
	chargeID := strings.TrimPrefix(card.CheckoutID, "pref-")
	_ = gw.SetStatus(chargeID, LegRejected)

	events := &stubEventHandler{}
	h := NewMercadoPagoWebhookHandler("", gw, events, nil, nil)

	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(chargeID, "", "r"))
	if rec.Code != http.StatusOK || len(events.events) != 1 || events.events[0].kind != "failure" {
		t.Fatalf("expected failure dispatch, got %d %+v", rec.Code, events.events)
	}

	// Unknown charge ids are acknowledged.
	rec = httptest.NewRecorder()
	h.Handle(rec, webhookRequest("nope", "", "r"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown charge, got %d", rec.Code)
	}

	// Conflicts from the lifecycle stop retries.
	events.err = apperr.Conflict("already_cancelled", "cancelado")
	rec = httptest.NewRecorder()
	h.Handle(rec, webhookRequest(chargeID, "", "r"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on conflict, got %d", rec.Code)
	}

	// Anything else asks the provider to retry.
	events.err = context.DeadlineExceeded
	rec = httptest.NewRecorder()
	h.Handle(rec, webhookRequest(chargeID, "", "r"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestWebhookIgnoresOtherTopics(t *testing.T) {
	events := &stubEventHandler{}
	h := NewMercadoPagoWebhookHandler("", NewFakeGateway("", nil), events, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", strings.NewReader(`{"type":"merchant_order","data":{"id":"9"}}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	if rec.Code != http.StatusOK || len(events.events) != 0 {
		t.Fatalf("expected ack without dispatch, got %d", rec.Code)
	}
}

func TestFakePaymentsHandlerApproves(t *testing.T) {
	gw := NewFakeGateway("http://localhost:3000", nil)
	apptID := uuid.New()
	charge, _ := gw.CreatePixCharge(context.Background(), PixChargeRequest{Amount: 10000, Reference: FormatReference(apptID, LegFirst)})

	events := &stubEventHandler{}
	webhook := NewMercadoPagoWebhookHandler("", gw, events, nil, nil)
	fake := NewFakePaymentsHandler(gw, webhook, nil)
	router := fake.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/"+charge.ExternalID, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "R$ 100.00") {
		t.Fatalf("unexpected checkout page: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/"+charge.ExternalID+"/complete", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if len(events.events) != 1 || events.events[0].kind != "confirm" {
		t.Fatalf("expected confirmation dispatch, got %+v", events.events)
	}
}
