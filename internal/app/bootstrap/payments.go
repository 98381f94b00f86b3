package bootstrap

import (
	"errors"
	"strings"

	appconfig "github.com/dheysonavelleda/radiestesia-agendamento/internal/config"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// ErrNoGateway is returned when neither MercadoPago nor fake payments are
// configured.
var ErrNoGateway = errors.New("bootstrap: MERCADOPAGO_ACCESS_TOKEN is required unless ALLOW_FAKE_PAYMENTS=true")

// BuildGateway picks MercadoPago when an access token is set and the fake
// gateway when demo payments are allowed. The fake gateway is also returned
// so the caller can mount its demo pages.
func BuildGateway(cfg *appconfig.Config, metrics payments.GatewayObserver, logger *logging.Logger) (payments.Gateway, *payments.FakeGateway, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if token := strings.TrimSpace(cfg.MercadoPagoAccessToken); token != "" {
		client := payments.NewMercadoPagoClient(token, logger).
			WithBaseURL(cfg.MercadoPagoBaseURL).
			WithNotificationURL(cfg.APIBaseURL + "/webhooks/mercadopago").
			WithMetrics(metrics)
		logger.Info("payment gateway configured", "provider", "mercadopago")
		return client, nil, nil
	}
	if cfg.AllowFakePayments {
		fake := payments.NewFakeGateway(cfg.APIBaseURL, logger)
		logger.Warn("payment gateway configured", "provider", "fake")
		return fake, fake, nil
	}
	return nil, nil, ErrNoGateway
}
