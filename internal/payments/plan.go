package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
)

// Prices in BRL cents.
const (
	PixTotal         int64 = 45000
	PixFirstPayment  int64 = 10000
	PixSecondPayment int64 = 35000
	CardTotal        int64 = 50000

	MaxInstallments = 4
	Currency        = "BRL"
)

// Plan is the amount split for a payment method.
type Plan struct {
	Total         int64
	FirstPayment  int64
	SecondPayment int64
}

// CalculatePaymentAmounts maps a method to its total and installments. The
// second payment is zero for card.
func CalculatePaymentAmounts(method Method) (Plan, error) {
	switch method {
	case MethodPix:
		return Plan{Total: PixTotal, FirstPayment: PixFirstPayment, SecondPayment: PixSecondPayment}, nil
	case MethodCard:
		return Plan{Total: CardTotal, FirstPayment: CardTotal}, nil
	default:
		return Plan{}, apperr.Validation("invalid_payment_method", "forma de pagamento deve ser PIX ou CARD")
	}
}

// ValidateInstallments checks a card installment count.
func ValidateInstallments(n int) error {
	if n < 1 || n > MaxInstallments {
		return apperr.Validation("invalid_installments", "parcelamento deve ser de 1 a 4 vezes")
	}
	return nil
}

// NewPayment builds the PENDING payment created together with an appointment
// starting at start. PIX payments carry the second-leg deadline.
func NewPayment(appointmentID uuid.UUID, method Method, start, now time.Time) (Payment, error) {
	plan, err := CalculatePaymentAmounts(method)
	if err != nil {
		return Payment{}, err
	}
	p := Payment{
		ID:                 uuid.New(),
		AppointmentID:      appointmentID,
		Method:             method,
		Status:             StatusPending,
		TotalAmount:        plan.Total,
		RemainingAmount:    plan.Total,
		Installments:       1,
		FirstPaymentAmount: plan.FirstPayment,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if method == MethodPix {
		due := SecondPaymentDeadline(start)
		p.Installments = 2
		p.SecondPaymentAmount = plan.SecondPayment
		p.SecondPaymentDue = &due
	}
	return p, nil
}
