package payments

import (
	"context"
	"errors"
)

// ErrChargeNotFound is returned by gateways for unknown charge ids.
var ErrChargeNotFound = errors.New("payments: charge not found")

// PixChargeRequest asks the gateway for an instant PIX charge.
type PixChargeRequest struct {
	Amount      int64
	Description string
	Reference   string
	PayerEmail  string
}

// PixCharge is the QR payload the client pays against.
type PixCharge struct {
	ExternalID   string    `json:"externalId"`
	QRCode       string    `json:"qrCode"`
	QRCodeBase64 string    `json:"qrCodeBase64"`
	TicketURL    string    `json:"ticketUrl,omitempty"`
	Status       LegStatus `json:"status"`
}

// CallbackURLs are where the hosted checkout returns the client.
type CallbackURLs struct {
	Success string
	Failure string
	Pending string
}

// CardCheckoutRequest asks the gateway for a hosted card checkout.
type CardCheckoutRequest struct {
	Amount       int64
	Description  string
	Reference    string
	Installments int
	Callbacks    CallbackURLs
}

// CardCheckout is a hosted checkout session.
type CardCheckout struct {
	CheckoutID  string `json:"checkoutId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// ChargeStatus is the gateway's view of one charge.
type ChargeStatus struct {
	ExternalID string
	Status     LegStatus
	RawStatus  string
	Reference  string
	Amount     int64
}

// RefundResult is the gateway acknowledgement of a refund.
type RefundResult struct {
	RefundID string
	Status   string
}

// Gateway is the payment provider consumed by the booking lifecycle.
type Gateway interface {
	CreatePixCharge(ctx context.Context, req PixChargeRequest) (*PixCharge, error)
	CreateCardCheckout(ctx context.Context, req CardCheckoutRequest) (*CardCheckout, error)
	GetChargeStatus(ctx context.Context, externalID string) (*ChargeStatus, error)
	// Refund returns amount cents of the charge; zero refunds it in full.
	Refund(ctx context.Context, externalID string, amount int64) (*RefundResult, error)
}
