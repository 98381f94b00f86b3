package appointments

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/actor"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
)

var (
	errFirstPaymentPending = apperr.Conflict("first_payment_pending", "a primeira parcela ainda não foi paga")
	errAlreadyPaid         = apperr.Conflict("already_paid", "esta etapa já foi paga")
	errMethodMismatch      = apperr.Validation("invalid_leg", "etapa não corresponde à forma de pagamento")
)

// ChargeResult is what the client needs to pay one leg.
type ChargeResult struct {
	AppointmentID uuid.UUID              `json:"appointmentId"`
	Leg           payments.Leg           `json:"leg"`
	Amount        int64                  `json:"amount"`
	Pix           *payments.PixCharge    `json:"pix,omitempty"`
	Checkout      *payments.CardCheckout `json:"checkout,omitempty"`
}

// InitiateCharge creates the gateway charge for leg and records it as
// pending. installments only applies to card checkouts.
func (m *Manager) InitiateCharge(ctx context.Context, who actor.Actor, id uuid.UUID, leg payments.Leg, installments int) (*ChargeResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.initiate_charge")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiestesia.appointment_id", id.String()),
		attribute.String("radiestesia.leg", string(leg)),
	)

	appt, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.CanAccess(appt.ClientID) {
		return nil, errNotOwner
	}
	if err := m.checkChargeable(appt, leg, installments); err != nil {
		fail(span, err)
		return nil, err
	}
	if m.velocity != nil {
		allowed, err := m.velocity.Allow(ctx, appt.ClientID, id)
		if err != nil {
			m.logger.Warn("charge velocity check failed", "appointment_id", id, "error", err)
		}
		if !allowed {
			fail(span, errTooManyCharges)
			return nil, errTooManyCharges
		}
	}

	p := appt.Payment
	result := &ChargeResult{AppointmentID: id, Leg: leg}
	reference := payments.FormatReference(id, leg)
	description := m.cfg.ServiceTitle + " - " + appt.StartTime.In(m.loc).Format("02/01/2006 15:04")
	var externalID, checkoutID string

	switch leg {
	case payments.LegFirst, payments.LegSecond:
		amount := p.FirstPaymentAmount
		if leg == payments.LegSecond {
			amount = p.SecondPaymentAmount
		}
		charge, err := m.gateway.CreatePixCharge(ctx, payments.PixChargeRequest{
			Amount:      amount,
			Description: description,
			Reference:   reference,
			PayerEmail:  appt.ClientEmail,
		})
		if err != nil {
			m.logger.Error("pix charge creation failed", "appointment_id", id, "leg", leg, "error", err)
			fail(span, err)
			return nil, apperr.Upstream("payment_gateway", "não foi possível gerar a cobrança", err)
		}
		result.Amount = amount
		result.Pix = charge
		externalID = charge.ExternalID
	case payments.LegCard:
		checkout, err := m.gateway.CreateCardCheckout(ctx, payments.CardCheckoutRequest{
			Amount:       p.TotalAmount,
			Description:  description,
			Reference:    reference,
			Installments: installments,
			Callbacks:    m.callbacks(id),
		})
		if err != nil {
			m.logger.Error("card checkout creation failed", "appointment_id", id, "error", err)
			fail(span, err)
			return nil, apperr.Upstream("payment_gateway", "não foi possível iniciar o checkout", err)
		}
		result.Amount = p.TotalAmount
		result.Checkout = checkout
		checkoutID = checkout.CheckoutID
	}

	err = m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if a.Status.Terminal() || a.Payment.Closed() {
			return errInvalidTransition
		}
		now := m.now().UTC()
		a.Payment.MarkLegPending(leg, externalID, now)
		if leg == payments.LegCard {
			a.Payment.CheckoutID = checkoutID
			a.Payment.Installments = installments
		}
		a.UpdatedAt = now
		return tx.Update(ctx, a)
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: record charge: %w", err)
	}
	m.logger.Info("charge initiated", "appointment_id", id, "leg", leg, "amount", result.Amount)
	return result, nil
}

func (m *Manager) checkChargeable(appt *Appointment, leg payments.Leg, installments int) error {
	if appt.Status.Terminal() {
		if appt.Status == StatusCancelled {
			return errAlreadyCancelled
		}
		return errInvalidTransition
	}
	p := appt.Payment
	if p.Closed() {
		return payments.ErrPaymentClosed
	}
	if !p.Accepts(leg) {
		return errMethodMismatch
	}
	switch leg {
	case payments.LegFirst:
		if p.FirstPaymentStatus == payments.LegApproved {
			return errAlreadyPaid
		}
	case payments.LegSecond:
		if p.FirstPaymentStatus != payments.LegApproved {
			return errFirstPaymentPending
		}
		if p.SecondPaymentStatus == payments.LegApproved {
			return errAlreadyPaid
		}
	case payments.LegCard:
		if err := payments.ValidateInstallments(installments); err != nil {
			return err
		}
		if p.Status == payments.StatusPaid {
			return errAlreadyPaid
		}
	}
	return nil
}

func (m *Manager) callbacks(id uuid.UUID) payments.CallbackURLs {
	base := strings.TrimRight(m.cfg.PublicBaseURL, "/") + "/agendamentos/" + url.PathEscape(id.String())
	return payments.CallbackURLs{
		Success: base + "?status=success",
		Failure: base + "?status=failure",
		Pending: base + "?status=pending",
	}
}

// PaymentEvents adapts the manager to the gateway webhook.
func (m *Manager) PaymentEvents() payments.PaymentEventHandler {
	return paymentEvents{m: m}
}

type paymentEvents struct {
	m *Manager
}

func (p paymentEvents) ConfirmOnPayment(ctx context.Context, id uuid.UUID, evt payments.PaymentEvent) error {
	_, err := p.m.ConfirmOnPayment(ctx, id, evt)
	return err
}

func (p paymentEvents) CompleteSecondPixPayment(ctx context.Context, id uuid.UUID, evt payments.PaymentEvent) error {
	_, err := p.m.CompleteSecondPixPayment(ctx, id, evt)
	return err
}

func (p paymentEvents) RecordPaymentFailure(ctx context.Context, id uuid.UUID, evt payments.PaymentEvent) error {
	_, err := p.m.RecordPaymentFailure(ctx, id, evt)
	return err
}
