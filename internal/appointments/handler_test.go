package appointments

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/actor"
)

func newTestRouter(t *testing.T) (*chi.Mux, *fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.mgr, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			switch req.Header.Get("X-Test-Actor") {
			case "client":
				req = req.WithContext(actor.WithActor(req.Context(), client))
			case "other":
				req = req.WithContext(actor.WithActor(req.Context(), other))
			case "admin":
				req = req.WithContext(actor.WithActor(req.Context(), admin))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.RegisterRoutes(r, nil)
	r.Route("/admin", h.RegisterAdminRoutes)
	return r, f
}

func do(r http.Handler, method, path, who, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if who != "" {
		req.Header.Set("X-Test-Actor", who)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type apptBody struct {
	ID                   string   `json:"id"`
	Status               string   `json:"status"`
	RemainingReschedules int      `json:"remainingReschedules"`
	StartTime            string   `json:"startTime"`
	Warnings             []string `json:"warnings"`
	Payment              struct {
		Status          string `json:"status"`
		TotalAmount     int64  `json:"totalAmount"`
		RemainingAmount int64  `json:"remainingAmount"`
		RefundedAmount  int64  `json:"refundedAmount"`
	} `json:"payment"`
}

func TestHandlerCreateAndGet(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodPost, "/appointments", "client", `{"date":"2025-06-02","startTime":"13:20","paymentMethod":"PIX"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created apptBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, 2, created.RemainingReschedules)
	assert.Equal(t, int64(45000), created.Payment.TotalAmount)
	assert.Equal(t, "2025-06-02T13:20:00-03:00", created.StartTime)

	rec = do(r, http.MethodGet, "/appointments/"+created.ID, "client", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/appointments/"+created.ID, "other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodPost, "/appointments", "other", `{"date":"2025-06-02","startTime":"13:20","paymentMethod":"CARD"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "slot_unavailable")
}

func TestHandlerCreateValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "bad date", body: `{"date":"02/06/2025","startTime":"13:20","paymentMethod":"PIX"}`, code: "invalid_date"},
		{name: "bad time", body: `{"date":"2025-06-02","startTime":"1pm","paymentMethod":"PIX"}`, code: "invalid_time"},
		{name: "bad method", body: `{"date":"2025-06-02","startTime":"13:20","paymentMethod":"BOLETO"}`, code: "invalid_payment_method"},
		{name: "bad json", body: `{`, code: "invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, "/appointments", "client", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestHandlerRequiresActor(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/appointments", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerCancelAndReschedule(t *testing.T) {
	r, f := newTestRouter(t)
	appt := f.book(t, "09:00", "PIX")
	path := "/appointments/" + appt.ID.String()

	rec := do(r, http.MethodPost, path+"/reschedule", "client", `{"date":"2025-06-02","startTime":"11:10"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved apptBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &moved))
	assert.Equal(t, 1, moved.RemainingReschedules)

	rec = do(r, http.MethodPost, path+"/cancel", "other", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_owner")

	rec = do(r, http.MethodPost, path+"/cancel", "client", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled apptBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "FORFEITED", cancelled.Payment.Status)

	rec = do(r, http.MethodPost, path+"/cancel", "client", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already_cancelled")
}

func TestHandlerInitiateCharge(t *testing.T) {
	r, f := newTestRouter(t)
	appt := f.book(t, "09:00", "PIX")
	path := "/appointments/" + appt.ID.String() + "/payments/"

	rec := do(r, http.MethodPost, path+"first", "client", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Amount int64 `json:"amount"`
		Pix    struct {
			ExternalID string `json:"externalId"`
			QRCode     string `json:"qrCode"`
		} `json:"pix"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(10000), body.Amount)
	assert.NotEmpty(t, body.Pix.ExternalID)
	assert.NotEmpty(t, body.Pix.QRCode)

	rec = do(r, http.MethodPost, path+"second", "client", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "first_payment_pending")

	rec = do(r, http.MethodPost, path+"boleto", "client", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAdminRoutes(t *testing.T) {
	r, f := newTestRouter(t)
	appt := f.book(t, "09:00", "CARD")
	f.payFirst(t, appt)
	path := "/admin/appointments/" + appt.ID.String()

	rec := do(r, http.MethodPost, path+"/complete", "client", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin_only")

	rec = do(r, http.MethodPatch, path, "admin", `{"adminNotes":"primeira sessão"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "primeira sessão")

	rec = do(r, http.MethodPost, path+"/complete", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"COMPLETED"`)

	rec = do(r, http.MethodGet, "/admin/appointments?status=COMPLETED", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Appointments []apptBody `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Appointments, 1)

	rec = do(r, http.MethodGet, "/admin/appointments?status=DONE", "admin", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
