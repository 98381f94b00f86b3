package bootstrap

import (
	"context"
	"strings"

	appconfig "github.com/dheysonavelleda/radiestesia-agendamento/internal/config"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/meet"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// BuildLinker returns the Google Meet linker, or a no-op linker when no
// service account is configured or the client cannot be built.
func BuildLinker(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) meet.Linker {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.GoogleCredentialsJSON) == "" {
		logger.Info("google meet disabled: GOOGLE_CREDENTIALS_JSON not set")
		return meet.NoopLinker{}
	}
	linker, err := meet.NewGoogleLinker(ctx, meet.GoogleConfig{
		CalendarID:      cfg.GoogleCalendarID,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		Timezone:        cfg.Timezone,
	}, logger)
	if err != nil {
		logger.Error("google meet disabled: client init failed", "error", err)
		return meet.NoopLinker{}
	}
	return linker
}
