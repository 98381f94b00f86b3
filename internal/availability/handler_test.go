package availability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc := newTestService(t, store, time.Date(2025, 6, 1, 12, 0, 0, 0, saoPaulo(t)))
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Route("/admin", h.RegisterAdminRoutes)
	return r, store
}

func TestHandlerSlots(t *testing.T) {
	r, store := newTestRouter(t)
	addWindow(t, store, "2025-06-02", "09:00", "17:00", true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/availability/slots?date=2025-06-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Date  string `json:"date"`
		Slots []struct {
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
			Available bool   `json:"available"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2025-06-02", body.Date)
	require.Len(t, body.Slots, 3)
	assert.Equal(t, "11:10", body.Slots[1].StartTime)
	assert.Equal(t, "13:10", body.Slots[1].EndTime)
}

func TestHandlerSlotsBadDate(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/availability/slots?date=02/06/2025", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_date")
}

func TestHandlerDates(t *testing.T) {
	r, store := newTestRouter(t)
	addWindow(t, store, "2025-06-05", "09:00", "17:00", true)
	addWindow(t, store, "2025-06-03", "09:00", "17:00", true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/availability/dates?month=6&year=2025", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body datesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"2025-06-03", "2025-06-05"}, body.Dates)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/availability/dates?month=0&year=2025", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAdminWindows(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/availability/windows",
		strings.NewReader(`{"date":"2025-06-02","startTime":"09:00","endTime":"12:00"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created windowJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Active)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/availability/windows/"+created.ID,
		strings.NewReader(`{"active":false}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/availability/windows?from=2025-06-01&to=2025-06-30", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":false`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/availability/windows/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/availability/windows/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerGenerateWindows(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/availability/windows/generate",
		strings.NewReader(`{"startDate":"2025-06-01","endDate":"2025-06-07","weekdays":[1,3]}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"created":2}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/availability/windows/generate",
		strings.NewReader(`{"startDate":"2025-06-01","endDate":"2025-06-07","weekdays":[7]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerBlocks(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/availability/blocks",
		strings.NewReader(`{"date":"2025-06-02","startTime":"12:00","endTime":"13:00","reason":"almoço"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created blockJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/availability/blocks?from=2025-06-02&to=2025-06-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "almoço")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/availability/blocks",
		strings.NewReader(`{"date":"2025-06-02","startTime":"13:00","endTime":"12:00"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
