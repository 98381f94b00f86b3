package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
)

var (
	ErrWindowNotFound = apperr.NotFound("window_not_found", "disponibilidade não encontrada")
	ErrBlockNotFound  = apperr.NotFound("block_not_found", "bloqueio não encontrado")

	errInvalidRange     = apperr.Validation("invalid_range", "horário inicial deve ser anterior ao final")
	errInvalidDateRange = apperr.Validation("invalid_date_range", "data inicial deve ser anterior ou igual à final")
	errRangeTooLong     = apperr.Validation("invalid_date_range", "intervalo máximo de 366 dias")
)

// WindowPatch updates selected window fields.
type WindowPatch struct {
	Date   *time.Time
	Start  *TimeOfDay
	End    *TimeOfDay
	Active *bool
}

// ListWindows returns all windows, active or not, in [from, to].
func (s *Service) ListWindows(ctx context.Context, from, to time.Time) ([]Window, error) {
	if to.Before(from) {
		return nil, errInvalidDateRange
	}
	windows, err := s.store.ListWindows(ctx, from, to, false)
	if err != nil {
		return nil, fmt.Errorf("availability: list windows: %w", err)
	}
	return windows, nil
}

// CreateWindow adds an open window on date.
func (s *Service) CreateWindow(ctx context.Context, date time.Time, start, end TimeOfDay, active bool) (*Window, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	w := Window{
		ID:        uuid.New(),
		Date:      date,
		Start:     start,
		End:       end,
		Active:    active,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateWindows(ctx, []Window{w}); err != nil {
		return nil, fmt.Errorf("availability: create window: %w", err)
	}
	s.Invalidate(ctx, date)
	return &w, nil
}

// UpdateWindow applies patch to the window with id.
func (s *Service) UpdateWindow(ctx context.Context, id uuid.UUID, patch WindowPatch) (*Window, error) {
	w, err := s.store.GetWindow(ctx, id)
	if err != nil {
		return nil, err
	}
	oldDate := w.Date
	if patch.Date != nil {
		w.Date = *patch.Date
	}
	if patch.Start != nil {
		w.Start = *patch.Start
	}
	if patch.End != nil {
		w.End = *patch.End
	}
	if patch.Active != nil {
		w.Active = *patch.Active
	}
	if err := validateRange(w.Start, w.End); err != nil {
		return nil, err
	}
	if err := s.store.UpdateWindow(ctx, w); err != nil {
		return nil, fmt.Errorf("availability: update window: %w", err)
	}
	s.Invalidate(ctx, oldDate, w.Date)
	return &w, nil
}

// DeleteWindow removes the window with id.
func (s *Service) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	w, err := s.store.DeleteWindow(ctx, id)
	if err != nil {
		return err
	}
	s.Invalidate(ctx, w.Date)
	return nil
}

// GenerateWindows creates one window per matching weekday in the request
// range, skipping dates that already have a window. It returns the count created.
func (s *Service) GenerateWindows(ctx context.Context, req GenerateRequest) (int, error) {
	req = req.withDefaults()
	if err := validateRange(req.Start, req.End); err != nil {
		return 0, err
	}
	if req.EndDate.Before(req.StartDate) {
		return 0, errInvalidDateRange
	}
	// Both ends count, so maxGenerateDays dates span maxGenerateDays-1 days.
	if req.EndDate.Sub(req.StartDate) > (maxGenerateDays-1)*24*time.Hour {
		return 0, errRangeTooLong
	}

	existing, err := s.store.ListWindows(ctx, req.StartDate, req.EndDate, false)
	if err != nil {
		return 0, fmt.Errorf("availability: generate: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, w := range existing {
		taken[FormatDate(w.Date)] = true
	}

	planned := PlanWindows(req, taken, s.now().UTC())
	if len(planned) == 0 {
		return 0, nil
	}
	if err := s.store.CreateWindows(ctx, planned); err != nil {
		return 0, fmt.Errorf("availability: generate: %w", err)
	}
	dates := make([]time.Time, 0, len(planned))
	for _, w := range planned {
		dates = append(dates, w.Date)
	}
	s.Invalidate(ctx, dates...)
	s.logger.Info("availability windows generated", "count", len(planned),
		"start_date", FormatDate(req.StartDate), "end_date", FormatDate(req.EndDate))
	return len(planned), nil
}

// PlanWindows lists the windows a generation request would create.
func PlanWindows(req GenerateRequest, taken map[string]bool, createdAt time.Time) []Window {
	req = req.withDefaults()
	wanted := make(map[time.Weekday]bool, len(req.Weekdays))
	for _, wd := range req.Weekdays {
		wanted[wd] = true
	}
	var out []Window
	for d := req.StartDate; !d.After(req.EndDate); d = d.AddDate(0, 0, 1) {
		if !wanted[d.Weekday()] || taken[FormatDate(d)] {
			continue
		}
		out = append(out, Window{
			ID:        uuid.New(),
			Date:      d,
			Start:     req.Start,
			End:       req.End,
			Active:    true,
			CreatedAt: createdAt,
		})
	}
	return out
}

// ListBlocks returns blocks in [from, to].
func (s *Service) ListBlocks(ctx context.Context, from, to time.Time) ([]Block, error) {
	if to.Before(from) {
		return nil, errInvalidDateRange
	}
	blocks, err := s.store.ListBlocks(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: list blocks: %w", err)
	}
	return blocks, nil
}

// CreateBlock removes [start, end) on date from availability.
func (s *Service) CreateBlock(ctx context.Context, date time.Time, start, end TimeOfDay, reason string) (*Block, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	b := Block{
		ID:        uuid.New(),
		Date:      date,
		Start:     start,
		End:       end,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateBlock(ctx, b); err != nil {
		return nil, fmt.Errorf("availability: create block: %w", err)
	}
	s.Invalidate(ctx, date)
	return &b, nil
}

// DeleteBlock removes the block with id.
func (s *Service) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	b, err := s.store.DeleteBlock(ctx, id)
	if err != nil {
		return err
	}
	s.Invalidate(ctx, b.Date)
	return nil
}

func (r GenerateRequest) withDefaults() GenerateRequest {
	if r.Start == 0 && r.End == 0 {
		r.Start, r.End = defaultGenerateStart, defaultGenerateEnd
	}
	if len(r.Weekdays) == 0 {
		r.Weekdays = defaultGenerateWeekdays
	}
	return r
}

func validateRange(start, end TimeOfDay) error {
	if !start.Valid() || !end.Valid() || start >= end {
		return errInvalidRange
	}
	return nil
}
