package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// FakeGateway is a dev/demo gateway that keeps charges in memory and lets
// them be approved through the demo checkout page.
//
// This MUST be gated by ALLOW_FAKE_PAYMENTS and never enabled in production.
type FakeGateway struct {
	publicBaseURL string
	logger        *logging.Logger

	mu      sync.Mutex
	seq     int
	charges map[string]*ChargeStatus
	refunds []FakeRefund
}

// FakeRefund records a refund issued through the fake gateway.
type FakeRefund struct {
	ExternalID string
	Amount     int64
}

func NewFakeGateway(publicBaseURL string, logger *logging.Logger) *FakeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeGateway{
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        logger,
		charges:       map[string]*ChargeStatus{},
	}
}

func (g *FakeGateway) CreatePixCharge(_ context.Context, req PixChargeRequest) (*PixCharge, error) {
	if req.Reference == "" {
		return nil, fmt.Errorf("payments: fake pix requires reference")
	}
	id := g.register(req.Reference, req.Amount)
	return &PixCharge{
		ExternalID:   id,
		QRCode:       "00020126fakepix" + id,
		QRCodeBase64: "",
		TicketURL:    g.checkoutURL(id),
		Status:       LegPending,
	}, nil
}

func (g *FakeGateway) CreateCardCheckout(_ context.Context, req CardCheckoutRequest) (*CardCheckout, error) {
	if req.Reference == "" {
		return nil, fmt.Errorf("payments: fake checkout requires reference")
	}
	if g.publicBaseURL == "" || !isValidBaseURL(g.publicBaseURL) {
		return nil, fmt.Errorf("payments: fake checkout PUBLIC_BASE_URL must be an absolute http(s) URL")
	}
	id := g.register(req.Reference, req.Amount)
	return &CardCheckout{CheckoutID: "pref-" + id, CheckoutURL: g.checkoutURL(id)}, nil
}

func (g *FakeGateway) GetChargeStatus(_ context.Context, externalID string) (*ChargeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[externalID]
	if !ok {
		return nil, ErrChargeNotFound
	}
	cp := *c
	return &cp, nil
}

func (g *FakeGateway) Refund(_ context.Context, externalID string, amount int64) (*RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[externalID]
	if !ok {
		return nil, ErrChargeNotFound
	}
	if amount == 0 {
		amount = c.Amount
	}
	g.refunds = append(g.refunds, FakeRefund{ExternalID: externalID, Amount: amount})
	return &RefundResult{RefundID: fmt.Sprintf("fake-refund-%d", len(g.refunds)), Status: "approved"}, nil
}

// SetStatus moves a fake charge to status.
func (g *FakeGateway) SetStatus(externalID string, status LegStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[externalID]
	if !ok {
		return ErrChargeNotFound
	}
	c.Status = status
	c.RawStatus = string(status)
	return nil
}

// Charge returns a copy of the charge with externalID.
func (g *FakeGateway) Charge(externalID string) (ChargeStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[externalID]
	if !ok {
		return ChargeStatus{}, false
	}
	return *c, true
}

// Refunds lists refunds issued so far.
func (g *FakeGateway) Refunds() []FakeRefund {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]FakeRefund(nil), g.refunds...)
}

func (g *FakeGateway) register(reference string, amount int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("fake-%d", g.seq)
	g.charges[id] = &ChargeStatus{
		ExternalID: id,
		Status:     LegPending,
		RawStatus:  string(LegPending),
		Reference:  reference,
		Amount:     amount,
	}
	return id
}

func (g *FakeGateway) checkoutURL(id string) string {
	if g.publicBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/demo/payments/%s", g.publicBaseURL, url.PathEscape(id))
}

func isValidBaseURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
