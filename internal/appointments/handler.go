package appointments

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/actor"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/availability"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

var (
	errBadDate   = apperr.Validation("invalid_date", "data inválida, use YYYY-MM-DD")
	errBadTime   = apperr.Validation("invalid_time", "horário inválido, use HH:MM")
	errBadBody   = apperr.Validation("invalid_body", "corpo da requisição inválido")
	errBadID     = apperr.Validation("invalid_id", "identificador inválido")
	errNoActor   = apperr.Forbidden("unauthenticated", "autenticação necessária")
	errBadFilter = apperr.Validation("invalid_payment_status", "status de pagamento inválido")
)

// Handler exposes the appointment lifecycle over HTTP.
type Handler struct {
	mgr    *Manager
	logger *logging.Logger
}

func NewHandler(mgr *Manager, logger *logging.Logger) *Handler {
	if mgr == nil {
		panic("appointments: manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{mgr: mgr, logger: logger}
}

// RegisterRoutes mounts the client routes. limit wraps the routes that
// create appointments or charges.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	r.Route("/appointments", func(r chi.Router) {
		r.With(limit).Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{appointmentID}", h.Get)
		r.Post("/{appointmentID}/cancel", h.Cancel)
		r.Post("/{appointmentID}/reschedule", h.Reschedule)
		r.With(limit).Post("/{appointmentID}/payments/{leg}", h.InitiateCharge)
	})
}

// RegisterAdminRoutes mounts practitioner actions.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.List)
		r.Patch("/{appointmentID}", h.UpdateAdminDetails)
		r.Post("/{appointmentID}/complete", h.Complete)
		r.Post("/{appointmentID}/no-show", h.MarkNoShow)
		r.Post("/{appointmentID}/meet-link", h.RegenerateMeetLink)
	})
}

type paymentJSON struct {
	Status              payments.Status    `json:"status"`
	TotalAmount         int64              `json:"totalAmount"`
	PaidAmount          int64              `json:"paidAmount"`
	RemainingAmount     int64              `json:"remainingAmount"`
	Installments        int                `json:"installments"`
	FirstPaymentAmount  int64              `json:"firstPaymentAmount"`
	FirstPaymentStatus  payments.LegStatus `json:"firstPaymentStatus,omitempty"`
	SecondPaymentAmount int64              `json:"secondPaymentAmount,omitempty"`
	SecondPaymentStatus payments.LegStatus `json:"secondPaymentStatus,omitempty"`
	SecondPaymentDue    *time.Time         `json:"secondPaymentDue,omitempty"`
	RefundedAmount      int64              `json:"refundedAmount"`
	RefundedAt          *time.Time         `json:"refundedAt,omitempty"`
	RefundReason        string             `json:"refundReason,omitempty"`
}

type appointmentJSON struct {
	ID                   string          `json:"id"`
	ClientID             string          `json:"clientId"`
	ClientName           string          `json:"clientName,omitempty"`
	OfferingID           string          `json:"serviceId"`
	Date                 string          `json:"date"`
	StartTime            time.Time       `json:"startTime"`
	EndTime              time.Time       `json:"endTime"`
	Status               Status          `json:"status"`
	PaymentMethod        payments.Method `json:"paymentMethod"`
	RescheduleCount      int             `json:"rescheduleCount"`
	RemainingReschedules int             `json:"remainingReschedules"`
	Notes                string          `json:"notes,omitempty"`
	AdminNotes           string          `json:"adminNotes,omitempty"`
	MeetLink             string          `json:"meetLink,omitempty"`
	CancelledAt          *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	Payment              *paymentJSON    `json:"payment,omitempty"`
	Warnings             []string        `json:"warnings,omitempty"`
}

func toJSON(a *Appointment, admin bool) appointmentJSON {
	out := appointmentJSON{
		ID:                   a.ID.String(),
		ClientID:             a.ClientID,
		ClientName:           a.ClientName,
		OfferingID:           a.OfferingID,
		Date:                 availability.FormatDate(a.Date),
		StartTime:            a.StartTime,
		EndTime:              a.EndTime,
		Status:               a.Status,
		PaymentMethod:        a.PaymentMethod,
		RescheduleCount:      a.RescheduleCount,
		RemainingReschedules: a.RemainingReschedules(),
		Notes:                a.Notes,
		MeetLink:             a.MeetLink,
		CancelledAt:          a.CancelledAt,
		CreatedAt:            a.CreatedAt,
	}
	if admin {
		out.AdminNotes = a.AdminNotes
	}
	if p := a.Payment; p != nil {
		out.Payment = &paymentJSON{
			Status:              p.Status,
			TotalAmount:         p.TotalAmount,
			PaidAmount:          p.PaidAmount,
			RemainingAmount:     p.RemainingAmount,
			Installments:        p.Installments,
			FirstPaymentAmount:  p.FirstPaymentAmount,
			FirstPaymentStatus:  p.FirstPaymentStatus,
			SecondPaymentAmount: p.SecondPaymentAmount,
			SecondPaymentStatus: p.SecondPaymentStatus,
			SecondPaymentDue:    p.SecondPaymentDue,
			RefundedAmount:      p.RefundedAmount,
			RefundedAt:          p.RefundedAt,
			RefundReason:        p.RefundReason,
		}
	}
	return out
}

func outcomeJSON(o *Outcome, admin bool) appointmentJSON {
	out := toJSON(o.Appointment, admin)
	for _, d := range o.Degraded {
		out.Warnings = append(out.Warnings, d.Step)
	}
	return out
}

type createRequest struct {
	ServiceID     string `json:"serviceId"`
	Date          string `json:"date"`
	StartTime     string `json:"startTime"`
	PaymentMethod string `json:"paymentMethod"`
	Notes         string `json:"notes"`
}

// Create handles POST /appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	who, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errBadBody)
		return
	}
	date, err := availability.ParseDate(req.Date)
	if err != nil {
		h.writeError(w, errBadDate)
		return
	}
	start, err := availability.ParseTimeOfDay(req.StartTime)
	if err != nil {
		h.writeError(w, errBadTime)
		return
	}
	method, err := payments.ParseMethod(req.PaymentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}
	appt, err := h.mgr.Create(r.Context(), who, CreateInput{
		OfferingID: req.ServiceID,
		Date:       date,
		StartTime:  start,
		Method:     method,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJSON(appt, who.IsAdmin()))
}

// List handles GET /appointments?status=&paymentStatus=&from=&to=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	who, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var f Filter
	if v := q.Get("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			h.writeError(w, err)
			return
		}
		f.Status = st
	}
	if v := q.Get("paymentStatus"); v != "" {
		switch st := payments.Status(v); st {
		case payments.StatusPending, payments.StatusPartialPaid, payments.StatusPaid,
			payments.StatusFailed, payments.StatusRefunded, payments.StatusForfeited:
			f.PaymentStatus = st
		default:
			h.writeError(w, errBadFilter)
			return
		}
	}
	loc := h.mgr.loc
	if v := q.Get("from"); v != "" {
		d, err := availability.ParseDate(v)
		if err != nil {
			h.writeError(w, errBadDate)
			return
		}
		f.From = availability.At(d, 0, loc)
	}
	if v := q.Get("to"); v != "" {
		d, err := availability.ParseDate(v)
		if err != nil {
			h.writeError(w, errBadDate)
			return
		}
		f.To = availability.At(d.AddDate(0, 0, 1), 0, loc)
	}
	list, err := h.mgr.List(r.Context(), who, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]appointmentJSON, 0, len(list))
	for _, a := range list {
		out = append(out, toJSON(a, who.IsAdmin()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

// Get handles GET /appointments/{appointmentID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	appt, err := h.mgr.Get(r.Context(), who, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(appt, who.IsAdmin()))
}

// Cancel handles POST /appointments/{appointmentID}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	out, err := h.mgr.Cancel(r.Context(), who, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeJSON(out, who.IsAdmin()))
}

type rescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
}

// Reschedule handles POST /appointments/{appointmentID}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errBadBody)
		return
	}
	date, err := availability.ParseDate(req.Date)
	if err != nil {
		h.writeError(w, errBadDate)
		return
	}
	start, err := availability.ParseTimeOfDay(req.StartTime)
	if err != nil {
		h.writeError(w, errBadTime)
		return
	}
	out, err := h.mgr.Reschedule(r.Context(), who, id, date, start)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeJSON(out, who.IsAdmin()))
}

type chargeRequest struct {
	Installments int `json:"installments"`
}

// InitiateCharge handles POST /appointments/{appointmentID}/payments/{leg}
func (h *Handler) InitiateCharge(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	leg, err := payments.ParseLeg(chi.URLParam(r, "leg"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	req := chargeRequest{Installments: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, errBadBody)
			return
		}
	}
	res, err := h.mgr.InitiateCharge(r.Context(), who, id, leg, req.Installments)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Complete handles POST /admin/appointments/{appointmentID}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	out, err := h.mgr.Complete(r.Context(), who, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeJSON(out, true))
}

// MarkNoShow handles POST /admin/appointments/{appointmentID}/no-show
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	appt, err := h.mgr.MarkNoShow(r.Context(), who, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(appt, true))
}

// RegenerateMeetLink handles POST /admin/appointments/{appointmentID}/meet-link
func (h *Handler) RegenerateMeetLink(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	appt, err := h.mgr.RegenerateMeetLink(r.Context(), who, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(appt, true))
}

type adminPatchRequest struct {
	AdminNotes *string `json:"adminNotes"`
	MeetLink   *string `json:"meetLink"`
}

// UpdateAdminDetails handles PATCH /admin/appointments/{appointmentID}
func (h *Handler) UpdateAdminDetails(w http.ResponseWriter, r *http.Request) {
	who, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req adminPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errBadBody)
		return
	}
	appt, err := h.mgr.UpdateAdminDetails(r.Context(), who, id, AdminPatch{AdminNotes: req.AdminNotes, MeetLink: req.MeetLink})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(appt, true))
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (actor.Actor, bool) {
	who, ok := actor.FromContext(r.Context())
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": errNoActor.Message, "code": errNoActor.Code})
		return actor.Actor{}, false
	}
	return who, true
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (actor.Actor, uuid.UUID, bool) {
	who, ok := h.actor(w, r)
	if !ok {
		return actor.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeError(w, errBadID)
		return actor.Actor{}, uuid.Nil, false
	}
	return who, id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInternal:
		h.logger.Error("appointments request failed", "error", err)
	case apperr.KindUpstream:
		h.logger.Warn("appointments upstream failure", "error", err)
	}
	apperr.WriteJSON(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
