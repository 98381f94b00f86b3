package payments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

var mercadoPagoTracer = otel.Tracer("radiestesia.internal.payments.mercadopago")

// DefaultMercadoPagoBaseURL is the production API host.
const DefaultMercadoPagoBaseURL = "https://api.mercadopago.com"

// GatewayObserver records gateway call outcomes.
type GatewayObserver interface {
	ObserveGatewayCall(op, result string)
}

// MercadoPagoClient talks to the MercadoPago REST API.
type MercadoPagoClient struct {
	accessToken     string
	baseURL         string
	notificationURL string
	httpClient      *http.Client
	metrics         GatewayObserver
	logger          *logging.Logger
	now             func() time.Time
}

func NewMercadoPagoClient(accessToken string, logger *logging.Logger) *MercadoPagoClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &MercadoPagoClient{
		accessToken: accessToken,
		baseURL:     DefaultMercadoPagoBaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		now:         time.Now,
	}
}

// WithBaseURL overrides the API host (tests, sandboxes).
func (c *MercadoPagoClient) WithBaseURL(baseURL string) *MercadoPagoClient {
	if baseURL == "" {
		return c
	}
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithNotificationURL sets the webhook URL attached to checkouts.
func (c *MercadoPagoClient) WithNotificationURL(u string) *MercadoPagoClient {
	c.notificationURL = u
	return c
}

func (c *MercadoPagoClient) WithHTTPClient(hc *http.Client) *MercadoPagoClient {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

func (c *MercadoPagoClient) WithMetrics(m GatewayObserver) *MercadoPagoClient {
	c.metrics = m
	return c
}

type mpPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func (c *MercadoPagoClient) CreatePixCharge(ctx context.Context, req PixChargeRequest) (*PixCharge, error) {
	ctx, span := mercadoPagoTracer.Start(ctx, "mercadopago.create_pix")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiestesia.reference", req.Reference),
		attribute.Int64("radiestesia.amount_cents", req.Amount),
	)

	body := map[string]any{
		"transaction_amount": toReais(req.Amount),
		"description":        req.Description,
		"payment_method_id":  "pix",
		"external_reference": req.Reference,
		"payer":              map[string]any{"email": req.PayerEmail},
	}
	if c.notificationURL != "" {
		body["notification_url"] = c.notificationURL
	}

	var parsed mpPayment
	err := c.do(ctx, http.MethodPost, "/v1/payments", body, c.idempotencyKey(req.Reference, req.Amount), &parsed)
	c.observe("create_pix", err)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	if parsed.ID == "" {
		err := fmt.Errorf("payments: mercadopago response missing id")
		fail(span, err)
		return nil, err
	}
	td := parsed.PointOfInteraction.TransactionData
	return &PixCharge{
		ExternalID:   parsed.ID.String(),
		QRCode:       td.QRCode,
		QRCodeBase64: td.QRCodeBase64,
		TicketURL:    td.TicketURL,
		Status:       ParseLegStatus(parsed.Status),
	}, nil
}

func (c *MercadoPagoClient) CreateCardCheckout(ctx context.Context, req CardCheckoutRequest) (*CardCheckout, error) {
	ctx, span := mercadoPagoTracer.Start(ctx, "mercadopago.create_preference")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiestesia.reference", req.Reference),
		attribute.Int64("radiestesia.amount_cents", req.Amount),
		attribute.Int("radiestesia.installments", req.Installments),
	)

	body := map[string]any{
		"items": []map[string]any{{
			"id":          req.Reference,
			"title":       req.Description,
			"quantity":    1,
			"unit_price":  toReais(req.Amount),
			"currency_id": Currency,
		}},
		"payment_methods": map[string]any{
			"installments": req.Installments,
			"excluded_payment_types": []map[string]string{
				{"id": "ticket"},
				{"id": "atm"},
			},
		},
		"back_urls": map[string]string{
			"success": req.Callbacks.Success,
			"failure": req.Callbacks.Failure,
			"pending": req.Callbacks.Pending,
		},
		"auto_return":        "approved",
		"external_reference": req.Reference,
	}
	if c.notificationURL != "" {
		body["notification_url"] = c.notificationURL
	}

	var parsed struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	err := c.do(ctx, http.MethodPost, "/checkout/preferences", body, "", &parsed)
	c.observe("create_preference", err)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	checkoutURL := parsed.InitPoint
	if checkoutURL == "" {
		checkoutURL = parsed.SandboxInitPoint
	}
	if parsed.ID == "" || checkoutURL == "" {
		err := fmt.Errorf("payments: mercadopago preference missing id or url")
		fail(span, err)
		return nil, err
	}
	return &CardCheckout{CheckoutID: parsed.ID, CheckoutURL: checkoutURL}, nil
}

func (c *MercadoPagoClient) GetChargeStatus(ctx context.Context, externalID string) (*ChargeStatus, error) {
	ctx, span := mercadoPagoTracer.Start(ctx, "mercadopago.get_payment")
	defer span.End()
	span.SetAttributes(attribute.String("mercadopago.payment_id", externalID))

	var parsed mpPayment
	err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(externalID), nil, "", &parsed)
	c.observe("get_payment", err)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	id := parsed.ID.String()
	if id == "" {
		id = externalID
	}
	return &ChargeStatus{
		ExternalID: id,
		Status:     ParseLegStatus(parsed.Status),
		RawStatus:  parsed.Status,
		Reference:  parsed.ExternalReference,
		Amount:     fromReais(parsed.TransactionAmount),
	}, nil
}

func (c *MercadoPagoClient) Refund(ctx context.Context, externalID string, amount int64) (*RefundResult, error) {
	ctx, span := mercadoPagoTracer.Start(ctx, "mercadopago.refund")
	defer span.End()
	span.SetAttributes(
		attribute.String("mercadopago.payment_id", externalID),
		attribute.Int64("radiestesia.amount_cents", amount),
	)

	body := map[string]any{}
	if amount > 0 {
		body["amount"] = toReais(amount)
	}
	var parsed struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}
	key := c.idempotencyKey("refund:"+externalID, amount)
	err := c.do(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(externalID)+"/refunds", body, key, &parsed)
	c.observe("refund", err)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	status := parsed.Status
	if status == "" {
		status = "pending"
	}
	return &RefundResult{RefundID: parsed.ID.String(), Status: status}, nil
}

func (c *MercadoPagoClient) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	if c.accessToken == "" {
		return fmt.Errorf("payments: mercadopago access token not configured")
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("payments: mercadopago payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("payments: mercadopago request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: mercadopago http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrChargeNotFound
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("payments: mercadopago api status %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payments: mercadopago decode: %w", err)
	}
	return nil
}

// idempotencyKey is stable for the same charge within an hour so client
// retries do not create duplicate charges.
func (c *MercadoPagoClient) idempotencyKey(reference string, amount int64) string {
	input := fmt.Sprintf("%s:%d:%s", reference, amount, c.now().UTC().Format("2006-01-02T15"))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func (c *MercadoPagoClient) observe(op string, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrChargeNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	c.metrics.ObserveGatewayCall(op, result)
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func toReais(cents int64) float64 { return float64(cents) / 100 }

func fromReais(v float64) int64 { return int64(math.Round(v * 100)) }
