package availability

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

var (
	errBadDate    = apperr.Validation("invalid_date", "data inválida, use YYYY-MM-DD")
	errBadTime    = apperr.Validation("invalid_time", "horário inválido, use HH:MM")
	errBadBody    = apperr.Validation("invalid_body", "corpo da requisição inválido")
	errBadID      = apperr.Validation("invalid_id", "identificador inválido")
	errBadWeekday = apperr.Validation("invalid_weekday", "dia da semana deve estar entre 0 e 6")
)

// Handler exposes availability over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an availability handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublicRoutes mounts the client-facing queries.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/availability/dates", h.AvailableDates)
	r.Get("/availability/slots", h.Slots)
}

// RegisterAdminRoutes mounts window and block management.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/availability", func(r chi.Router) {
		r.Get("/windows", h.ListWindows)
		r.Post("/windows", h.CreateWindow)
		r.Post("/windows/generate", h.GenerateWindows)
		r.Put("/windows/{windowID}", h.UpdateWindow)
		r.Delete("/windows/{windowID}", h.DeleteWindow)
		r.Get("/blocks", h.ListBlocks)
		r.Post("/blocks", h.CreateBlock)
		r.Delete("/blocks/{blockID}", h.DeleteBlock)
	})
}

type datesResponse struct {
	Month int      `json:"month"`
	Year  int      `json:"year"`
	Dates []string `json:"dates"`
}

// AvailableDates handles GET /availability/dates?month=&year=
func (h *Handler) AvailableDates(w http.ResponseWriter, r *http.Request) {
	month, errM := strconv.Atoi(r.URL.Query().Get("month"))
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	if errM != nil {
		h.writeError(w, errInvalidMonth)
		return
	}
	if errY != nil {
		h.writeError(w, errInvalidYear)
		return
	}
	dates, err := h.svc.ListAvailableDates(r.Context(), month, year)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := datesResponse{Month: month, Year: year, Dates: make([]string, 0, len(dates))}
	for _, d := range dates {
		resp.Dates = append(resp.Dates, FormatDate(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

type slotsResponse struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// Slots handles GET /availability/slots?date=YYYY-MM-DD
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	date, err := ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, errBadDate)
		return
	}
	slots, err := h.svc.ListSlotsForDate(r.Context(), date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{Date: FormatDate(date), Slots: slots})
}

type windowJSON struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Active    bool   `json:"active"`
}

func toWindowJSON(w Window) windowJSON {
	return windowJSON{
		ID:        w.ID.String(),
		Date:      FormatDate(w.Date),
		StartTime: w.Start.String(),
		EndTime:   w.End.String(),
		Active:    w.Active,
	}
}

// ListWindows handles GET /admin/availability/windows?from=&to=
func (h *Handler) ListWindows(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.rangeParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	windows, err := h.svc.ListWindows(r.Context(), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]windowJSON, 0, len(windows))
	for _, win := range windows {
		out = append(out, toWindowJSON(win))
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": out})
}

type windowRequest struct {
	Date      *string `json:"date"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	Active    *bool   `json:"active"`
}

// CreateWindow handles POST /admin/availability/windows
func (h *Handler) CreateWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errBadBody)
		return
	}
	if req.Date == nil || req.StartTime == nil || req.EndTime == nil {
		h.writeError(w, apperr.Validation("missing_fields", "date, startTime e endTime são obrigatórios"))
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeError(w, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	win, err := h.svc.CreateWindow(r.Context(), *patch.Date, *patch.Start, *patch.End, active)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWindowJSON(*win))
}

// UpdateWindow handles PUT /admin/availability/windows/{windowID}
func (h *Handler) UpdateWindow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "windowID"))
	if err != nil {
		h.writeError(w, errBadID)
		return
	}
	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errBadBody)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeError(w, err)
		return
	}
	win, err := h.svc.UpdateWindow(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWindowJSON(*win))
}

// DeleteWindow handles DELETE /admin/availability/windows/{windowID}
func (h *Handler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "windowID"))
	if err != nil {
		h.writeError(w, errBadID)
		return
	}
	if err := h.svc.DeleteWindow(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Weekdays  []int  `json:"weekdays"`
}

// GenerateWindows handles POST /admin/availability/windows/generate
func (h *Handler) GenerateWindows(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, errBadBody)
		return
	}
	startDate, errS := ParseDate(body.StartDate)
	endDate, errE := ParseDate(body.EndDate)
	if errS != nil || errE != nil {
		h.writeError(w, errBadDate)
		return
	}
	req := GenerateRequest{StartDate: startDate, EndDate: endDate, Start: defaultGenerateStart, End: defaultGenerateEnd}
	if body.StartTime != "" {
		t, err := ParseTimeOfDay(body.StartTime)
		if err != nil {
			h.writeError(w, errBadTime)
			return
		}
		req.Start = t
	}
	if body.EndTime != "" {
		t, err := ParseTimeOfDay(body.EndTime)
		if err != nil {
			h.writeError(w, errBadTime)
			return
		}
		req.End = t
	}
	for _, wd := range body.Weekdays {
		if wd < 0 || wd > 6 {
			h.writeError(w, errBadWeekday)
			return
		}
		req.Weekdays = append(req.Weekdays, time.Weekday(wd))
	}

	created, err := h.svc.GenerateWindows(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"created": created})
}

type blockJSON struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Reason    string `json:"reason,omitempty"`
}

// ListBlocks handles GET /admin/availability/blocks?from=&to=
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.rangeParams(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	blocks, err := h.svc.ListBlocks(r.Context(), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]blockJSON, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockJSON{
			ID:        b.ID.String(),
			Date:      FormatDate(b.Date),
			StartTime: b.Start.String(),
			EndTime:   b.End.String(),
			Reason:    b.Reason,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": out})
}

// CreateBlock handles POST /admin/availability/blocks
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var body blockJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, errBadBody)
		return
	}
	date, err := ParseDate(body.Date)
	if err != nil {
		h.writeError(w, errBadDate)
		return
	}
	start, errS := ParseTimeOfDay(body.StartTime)
	end, errE := ParseTimeOfDay(body.EndTime)
	if errS != nil || errE != nil {
		h.writeError(w, errBadTime)
		return
	}
	b, err := h.svc.CreateBlock(r.Context(), date, start, end, body.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	body.ID = b.ID.String()
	body.Date = FormatDate(b.Date)
	writeJSON(w, http.StatusCreated, body)
}

// DeleteBlock handles DELETE /admin/availability/blocks/{blockID}
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "blockID"))
	if err != nil {
		h.writeError(w, errBadID)
		return
	}
	if err := h.svc.DeleteBlock(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req windowRequest) toPatch() (WindowPatch, error) {
	var patch WindowPatch
	if req.Date != nil {
		d, err := ParseDate(*req.Date)
		if err != nil {
			return patch, errBadDate
		}
		patch.Date = &d
	}
	if req.StartTime != nil {
		t, err := ParseTimeOfDay(*req.StartTime)
		if err != nil {
			return patch, errBadTime
		}
		patch.Start = &t
	}
	if req.EndTime != nil {
		t, err := ParseTimeOfDay(*req.EndTime)
		if err != nil {
			return patch, errBadTime
		}
		patch.End = &t
	}
	patch.Active = req.Active
	return patch, nil
}

// rangeParams reads from/to, defaulting to today through 60 days ahead.
func (h *Handler) rangeParams(r *http.Request) (time.Time, time.Time, error) {
	from := h.svc.Today()
	to := from.AddDate(0, 0, 60)
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return from, to, errBadDate
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return from, to, errBadDate
		}
		to = d
	}
	return from, to, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error("availability request failed", "error", err)
	}
	apperr.WriteJSON(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
