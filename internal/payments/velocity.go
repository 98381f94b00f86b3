package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

var velocityTracer = otel.Tracer("radiestesia.internal.payments.velocity")

// VelocityChecker caps how many charges can be opened per appointment and
// per client inside a rolling window. Counters live in Redis.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	MaxChargesPerAppointment int
	AppointmentWindow        time.Duration

	MaxChargesPerClient int
	ClientWindow        time.Duration
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxChargesPerAppointment: 5,
		AppointmentWindow:        time.Hour,
		MaxChargesPerClient:      10,
		ClientWindow:             24 * time.Hour,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CheckType    string
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if logger == nil {
		logger = logging.Default()
	}
	defaults := DefaultVelocityConfig()
	if config.AppointmentWindow <= 0 {
		config.AppointmentWindow = defaults.AppointmentWindow
	}
	if config.ClientWindow <= 0 {
		config.ClientWindow = defaults.ClientWindow
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckCharge counts one charge attempt against the appointment and the
// client. A zero limit disables that check. Redis failures allow the attempt.
func (v *VelocityChecker) CheckCharge(ctx context.Context, clientID string, appointmentID uuid.UUID) (*VelocityResult, error) {
	ctx, span := velocityTracer.Start(ctx, "velocity.check_charge")
	defer span.End()
	span.SetAttributes(attribute.String("radiestesia.appointment_id", appointmentID.String()))

	if v.config.MaxChargesPerAppointment > 0 {
		key := fmt.Sprintf("velocity:charge:appointment:%s", appointmentID)
		result := v.check(ctx, key, "appointment", v.config.MaxChargesPerAppointment, v.config.AppointmentWindow)
		if !result.Allowed {
			span.SetAttributes(attribute.String("velocity.blocked_by", "appointment"))
			v.logger.Warn("charge velocity exceeded",
				"appointment_id", appointmentID,
				"count", result.CurrentCount,
				"max", result.MaxAllowed,
			)
			return result, nil
		}
	}

	if v.config.MaxChargesPerClient > 0 && clientID != "" {
		key := fmt.Sprintf("velocity:charge:client:%s", clientID)
		result := v.check(ctx, key, "client", v.config.MaxChargesPerClient, v.config.ClientWindow)
		if !result.Allowed {
			span.SetAttributes(attribute.String("velocity.blocked_by", "client"))
			v.logger.Warn("charge velocity exceeded",
				"client_id", clientID,
				"count", result.CurrentCount,
				"max", result.MaxAllowed,
			)
			return result, nil
		}
	}

	return &VelocityResult{Allowed: true, CheckType: "charge"}, nil
}

// Allow adapts CheckCharge to a plain yes/no answer.
func (v *VelocityChecker) Allow(ctx context.Context, clientID string, appointmentID uuid.UUID) (bool, error) {
	result, err := v.CheckCharge(ctx, clientID, appointmentID)
	if err != nil {
		return true, err
	}
	return result.Allowed, nil
}

func (v *VelocityChecker) check(ctx context.Context, key, checkType string, max int, window time.Duration) *VelocityResult {
	count, err := v.incrementAndGet(ctx, key, window)
	if err != nil {
		v.logger.Warn("velocity check failed, allowing", "key", key, "error", err)
		return &VelocityResult{Allowed: true, CheckType: checkType, MaxAllowed: max}
	}
	result := &VelocityResult{
		Allowed:      count <= max,
		CheckType:    checkType,
		CurrentCount: count,
		MaxAllowed:   max,
		WindowExpiry: time.Now().Add(window),
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("limite de %d cobranças atingido, tente novamente mais tarde", max)
	}
	return result
}

func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, error) {
	if v.redis == nil {
		return 0, fmt.Errorf("payments: velocity: redis not configured")
	}
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := v.redis.Expire(ctx, key, window).Err(); err != nil {
			v.logger.Warn("failed to set velocity key expiry", "key", key, "error", err)
		}
	}
	return int(count), nil
}
