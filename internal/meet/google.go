package meet

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

var tracer = otel.Tracer("radiestesia.internal.meet")

// GoogleConfig configures the Google Calendar linker.
type GoogleConfig struct {
	CalendarID      string
	CredentialsJSON string
	Timezone        string
}

// GoogleLinker creates Google Calendar events with a Meet conference.
type GoogleLinker struct {
	events     *calendar.EventsService
	calendarID string
	timezone   string
	logger     *logging.Logger
}

// NewGoogleLinker builds a linker from service account credentials. Extra
// options (endpoint, HTTP client) are appended for tests.
func NewGoogleLinker(ctx context.Context, cfg GoogleConfig, logger *logging.Logger, opts ...option.ClientOption) (*GoogleLinker, error) {
	if logger == nil {
		logger = logging.Default()
	}
	clientOpts := make([]option.ClientOption, 0, len(opts)+2)
	if cfg.CredentialsJSON != "" {
		clientOpts = append(clientOpts,
			option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
			option.WithScopes(calendar.CalendarEventsScope),
		)
	}
	clientOpts = append(clientOpts, opts...)
	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("meet: calendar client: %w", err)
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "America/Sao_Paulo"
	}
	return &GoogleLinker{
		events:     calendar.NewEventsService(svc),
		calendarID: calendarID,
		timezone:   tz,
		logger:     logger,
	}, nil
}

func (g *GoogleLinker) CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error) {
	ctx, span := tracer.Start(ctx, "meet.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiestesia.request_id", req.RequestID),
		attribute.String("radiestesia.start", req.Start.UTC().Format(time.RFC3339)),
	)

	event := &calendar.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: g.timezone},
		End:         &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339), TimeZone: g.timezone},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             req.RequestID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if req.AttendeeEmail != "" {
		event.Attendees = []*calendar.EventAttendee{{Email: req.AttendeeEmail}}
	}

	created, err := g.events.Insert(g.calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("meet: insert event: %w", err)
	}

	link := videoEntryPoint(created)
	if link == "" {
		err := fmt.Errorf("meet: event %s has no video entry point", created.Id)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	g.logger.Info("meet link created", "event_id", created.Id)
	return &Meeting{EventID: created.Id, URL: link}, nil
}

func (g *GoogleLinker) CancelMeeting(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "meet.cancel")
	defer span.End()
	if err := g.events.Delete(g.calendarID, eventID).SendUpdates("all").Context(ctx).Do(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("meet: delete event: %w", err)
	}
	return nil
}

func videoEntryPoint(ev *calendar.Event) string {
	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return ev.HangoutLink
}

var (
	_ Linker = (*GoogleLinker)(nil)
	_ Linker = NoopLinker{}
)
