package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

const maxRange = 366 * 24 * time.Hour

type statsSource interface {
	Stats(ctx context.Context, from, to, now time.Time) (*Stats, error)
}

// Handler serves GET /admin/stats.
type Handler struct {
	source statsSource
	loc    *time.Location
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(source statsSource, loc *time.Location, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{source: source, loc: loc, logger: logger, now: time.Now}
}

// RegisterRoutes mounts the stats route; callers enforce admin access.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.GetStats)
}

// GetStats handles GET /admin/stats?from=YYYY-MM-DD&to=YYYY-MM-DD. Both dates
// are inclusive and default to the current month.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.loc)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.loc)
	to := from.AddDate(0, 1, 0)

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
			return
		}
		from = d
	}
	if v := q.Get("to"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "to must be YYYY-MM-DD")
			return
		}
		to = d.AddDate(0, 0, 1)
	}
	if !from.Before(to) || to.Sub(from) > maxRange {
		writeError(w, http.StatusBadRequest, "invalid_range", "from must precede to by at most 366 days")
		return
	}

	stats, err := h.source.Stats(r.Context(), from, to, now)
	if err != nil {
		h.logger.Error("failed to load dashboard stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
