package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/appointments"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/availability"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/dashboard"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/events"
	httpmiddleware "github.com/dheysonavelleda/radiestesia-agendamento/internal/http/middleware"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

const testSecret = "router-secret"

type staticStats struct{}

func (staticStats) Stats(_ context.Context, from, to, _ time.Time) (*dashboard.Stats, error) {
	return &dashboard.Stats{From: from, To: to, ByStatus: map[string]int{}}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }

type harness struct {
	router http.Handler
	date   string
}

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()
	return newHarness(t, mutate).router
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	logger := logging.NewWithWriter("error", nil)

	calendar := availability.NewMemoryStore()
	date := time.Now().In(loc).AddDate(0, 0, 7).Format("2006-01-02")
	day, err := availability.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if err := calendar.CreateWindows(context.Background(), []availability.Window{{
		ID:     uuid.New(),
		Date:   day,
		Start:  availability.MustTimeOfDay("09:00"),
		End:    availability.MustTimeOfDay("17:00"),
		Active: true,
	}}); err != nil {
		t.Fatalf("create window: %v", err)
	}
	store := appointments.NewMemoryStore(calendar)
	calendar.SetBookingLister(store)

	gateway := payments.NewFakeGateway("http://localhost:8080", logger)
	mgr := appointments.NewManager(store, gateway, loc, appointments.Config{PublicBaseURL: "http://localhost:3000"}, logger)
	webhook := payments.NewMercadoPagoWebhookHandler("", gateway, mgr.PaymentEvents(), events.NewMemoryProcessedStore(), logger)

	cfg := &Config{
		Logger:             logger,
		Availability:       availability.NewHandler(availability.NewService(calendar, loc, logger), logger),
		Appointments:       appointments.NewHandler(mgr, logger),
		Dashboard:          dashboard.NewHandler(staticStats{}, loc, logger),
		MercadoPagoWebhook: webhook,
		FakePayments:       payments.NewFakePaymentsHandler(gateway, webhook, logger),
		AuthSecret:         testSecret,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return &harness{router: New(cfg), date: date}
}

func bearer(t *testing.T, sub, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.ActorClaims{
		Role:  role,
		Email: sub + "@example.com",
		Name:  sub,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func serve(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterHealthReportsFailingDependency(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.Health = map[string]HealthChecker{
			"database": func(context.Context) error { return errors.New("refused") },
		}
	})

	rr := serve(router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"database":"unavailable"`) {
		t.Fatalf("expected failing dependency in body, got %s", rr.Body.String())
	}
}

func TestRouterAvailabilityIsPublic(t *testing.T) {
	router := newTestRouter(t, nil)
	now := time.Now()
	rr := serve(router, http.MethodGet, "/availability/dates?month="+now.Format("1")+"&year="+now.Format("2006"), "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected public availability, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterAppointmentsRequireToken(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodGet, "/appointments", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr = serve(router, http.MethodGet, "/appointments", bearer(t, "user-1", "CLIENT"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterAdminRoutesRequireAdminRole(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodGet, "/admin/stats", bearer(t, "user-1", "CLIENT"), "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", rr.Code)
	}

	admin := bearer(t, "joana", "ADMIN")
	for _, path := range []string{"/admin/stats", "/admin/appointments", "/admin/availability/windows?from=2025-06-01&to=2025-06-30"} {
		rr = serve(router, http.MethodGet, path, admin, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for admin on %s, got %d: %s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestRouterRateLimitsBookingCreation(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.Limiter = denyLimiter{} })

	token := bearer(t, "user-1", "CLIENT")
	rr := serve(router, http.MethodPost, "/appointments", token, `{}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}

	rr = serve(router, http.MethodGet, "/appointments", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("listing must not be limited, got %d", rr.Code)
	}
}

func TestRouterWebhookAcksOtherTopics(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := serve(router, http.MethodPost, "/webhooks/mercadopago", "", `{"type":"plan","data":{"id":"1"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected non-payment notification acked, got %d", rr.Code)
	}
}

func TestRouterDemoPaymentConfirmsBooking(t *testing.T) {
	h := newHarness(t, nil)
	token := bearer(t, "user-1", "CLIENT")

	rr := serve(h.router, http.MethodPost, "/appointments", token,
		`{"date":"`+h.date+`","startTime":"09:00","paymentMethod":"PIX"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	rr = serve(h.router, http.MethodPost, "/appointments/"+created.ID+"/payments/first", token, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("charge: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var charge struct {
		Pix struct {
			ExternalID string `json:"externalId"`
		} `json:"pix"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&charge); err != nil {
		t.Fatalf("decode charge: %v", err)
	}
	if charge.Pix.ExternalID == "" {
		t.Fatalf("expected pix charge id")
	}

	rr = serve(h.router, http.MethodPost, "/demo/payments/"+charge.Pix.ExternalID+"/complete", "", "")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("approve: expected redirect, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(h.router, http.MethodGet, "/appointments/"+created.ID, token, "")
	if !strings.Contains(rr.Body.String(), `"status":"CONFIRMED"`) {
		t.Fatalf("expected confirmed booking, got %s", rr.Body.String())
	}
}
