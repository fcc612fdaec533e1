package outbox

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"

	"go.uber.org/zap"
)

// DeliveryLog append-only sink read by the bus relay
type DeliveryLog interface {
	Name() string
	Append(ctx context.Context, msg *models.OutboundMessage) error
}

// Publisher writes every outbound message to two independent delivery logs.
// A failure in one log is logged and never affects the other or the caller.
type Publisher struct {
	primary   DeliveryLog
	secondary DeliveryLog
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewPublisher creates the dual-write publisher; secondary may be nil
func NewPublisher(primary, secondary DeliveryLog, logger *zap.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Publish marshals message and appends it to both logs
func (p *Publisher) Publish(ctx context.Context, topic string, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		p.logger.Error("Failed to encode outbound message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	msg := &models.OutboundMessage{
		Topic:     topic,
		Payload:   payload,
		CreatedAt: p.now(),
	}

	stored := 0
	for _, log := range []DeliveryLog{p.primary, p.secondary} {
		if log == nil {
			continue
		}
		err := log.Append(ctx, msg)
		p.metrics.OutboxWrite(log.Name(), err)
		if err != nil {
			p.logger.Error("Failed to store outbound message",
				zap.String("log", log.Name()),
				zap.String("topic", topic),
				zap.Error(err),
			)
			continue
		}
		stored++
	}

	p.logger.Debug("Stored outbound message",
		zap.String("topic", topic),
		zap.ByteString("payload", payload),
		zap.Int("logs", stored),
	)
}

// Close releases logs holding connections of their own
func (p *Publisher) Close() error {
	var firstErr error
	for _, log := range []DeliveryLog{p.primary, p.secondary} {
		c, ok := log.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
