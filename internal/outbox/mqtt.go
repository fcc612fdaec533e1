package outbox

import (
	"context"
	"fmt"

	"sensorica-ingest/internal/models"
)

// BusPublisher subset of the mqtt client used by MQTTLog
type BusPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTLog publishes straight to the live bus, bypassing the relay.
// prefix is prepended to every topic.
type MQTTLog struct {
	bus    BusPublisher
	prefix string
	qos    byte
}

// NewMQTTLog creates a direct bus sink
func NewMQTTLog(bus BusPublisher, prefix string, qos byte) *MQTTLog {
	return &MQTTLog{bus: bus, prefix: prefix, qos: qos}
}

func (l *MQTTLog) Name() string { return "mqtt:" + l.prefix }

func (l *MQTTLog) Append(_ context.Context, msg *models.OutboundMessage) error {
	topic := l.prefix + msg.Topic
	if err := l.bus.Publish(topic, l.qos, false, msg.Payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}
