// Package relay accepts order submissions and forwards them as a single
// formatted message to the business inbox through the messaging gateway.
package relay

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ltec/orderrelay/internal/domain/order"
	"github.com/ltec/orderrelay/internal/domain/shared"
	"github.com/ltec/orderrelay/internal/infrastructure/logger"
	"github.com/ltec/orderrelay/internal/infrastructure/messaging"
	"github.com/ltec/orderrelay/internal/infrastructure/telemetry"
)

// Config holds relay settings
type Config struct {
	// BusinessRecipient is the only number messages are sent to
	BusinessRecipient string
	Location          *time.Location
	TimestampLayout   string
	IdempotencyTTL    time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithIdempotencyStore suppresses resends of already relayed keys
func WithIdempotencyStore(store shared.IdempotencyStore) Option {
	return func(s *Service) { s.idempotency = store }
}

// WithMetrics records outcomes
func WithMetrics(m *telemetry.RelayMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the base logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the relay state machine
type Service struct {
	gateway     messaging.Gateway
	formatter   *Formatter
	cfg         Config
	idempotency shared.IdempotencyStore
	metrics     *telemetry.RelayMetrics
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a relay service
func NewService(gateway messaging.Gateway, cfg Config, opts ...Option) (*Service, error) {
	if cfg.IdempotencyTTL == 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	formatter, err := NewFormatter(cfg.Location, cfg.TimestampLayout)
	if err != nil {
		return nil, err
	}
	s := &Service{
		gateway:   gateway,
		formatter: formatter,
		cfg:       cfg,
		tracer:    otel.Tracer("relay"),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GatewayReady reports the gateway readiness flag
func (s *Service) GatewayReady() bool {
	return s.gateway.IsReady()
}

// Relay moves sub through
// Received → Validated → GatewayChecked → Formatted → Dispatched → Acknowledged.
// A failed gate returns *order.RejectedError naming that gate.
func (s *Service) Relay(ctx context.Context, sub order.Submission) (*order.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "relay.Submit")
	defer span.End()

	log := s.logger
	if id := logger.GetRequestID(ctx); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = s.now()
	}

	receipt := &order.Receipt{Recipient: s.cfg.BusinessRecipient, Stages: []order.Stage{order.StageReceived}}
	reject := func(stage order.Stage, derr *shared.DomainError, cause error) (*order.Receipt, error) {
		err := order.Reject(stage, derr, cause)
		span.RecordError(err)
		span.SetStatus(codes.Error, derr.Code)
		s.metrics.RecordOutcome(ctx, "rejected", string(stage))
		log.Warn("submission rejected", zap.String("stage", string(stage)), zap.Error(err))
		return nil, err
	}

	if !sub.HasRequiredFields() {
		return reject(order.StageValidated, order.ErrMissingFields, nil)
	}
	receipt.Stages = append(receipt.Stages, order.StageValidated)

	if dup := s.alreadyRelayed(ctx, log, sub.IdempotencyKey); dup {
		receipt.Duplicate = true
		receipt.Stages = append(receipt.Stages, order.StageAcknowledged)
		s.metrics.RecordDuplicate(ctx)
		log.Info("duplicate submission acknowledged without sending", zap.String("idempotency_key", sub.IdempotencyKey))
		return receipt, nil
	}

	if !s.gateway.IsReady() {
		return reject(order.StageGatewayChecked, order.ErrGatewayNotReady, nil)
	}
	receipt.Stages = append(receipt.Stages, order.StageGatewayChecked)

	text, err := s.formatter.Format(sub, sub.ReceivedAt)
	if err != nil {
		return reject(order.StageFormatted, order.ErrDispatchFailed, err)
	}
	receipt.Stages = append(receipt.Stages, order.StageFormatted)

	start := time.Now()
	result, err := s.gateway.SendMessage(ctx, s.cfg.BusinessRecipient, text)
	s.metrics.RecordDispatch(ctx, time.Since(start), err == nil)
	if err != nil {
		return reject(order.StageDispatched, order.ErrDispatchFailed, err)
	}
	receipt.DeliveryID = result.ProviderMessageID
	receipt.Stages = append(receipt.Stages, order.StageDispatched)

	if sub.IdempotencyKey != "" && s.idempotency != nil {
		if _, err := s.idempotency.MarkProcessed(ctx, sub.IdempotencyKey, s.cfg.IdempotencyTTL); err != nil {
			log.Warn("failed to record submission key", zap.Error(err))
		}
	}

	receipt.Stages = append(receipt.Stages, order.StageAcknowledged)
	span.SetAttributes(attribute.String("relay.delivery_id", receipt.DeliveryID))
	s.metrics.RecordOutcome(ctx, "success", string(order.StageAcknowledged))
	log.Info("order relayed to business inbox", zap.String("delivery_id", receipt.DeliveryID))
	return receipt, nil
}

func (s *Service) alreadyRelayed(ctx context.Context, log *zap.Logger, key string) bool {
	if key == "" || s.idempotency == nil {
		return false
	}
	done, err := s.idempotency.IsProcessed(ctx, key)
	if err != nil {
		log.Warn("idempotency lookup failed, relaying anyway", zap.Error(err))
		return false
	}
	return done
}
