package outbox

import (
	"context"
	"fmt"

	"sensorica-ingest/internal/models"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter subset of *kafka.Writer used by KafkaLog
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaLog appends to a Kafka topic keyed by the bus topic so that
// messages for one bus topic stay ordered within a partition.
type KafkaLog struct {
	writer KafkaWriter
	topic  string
}

// NewKafkaWriter builds a synchronous hash-balanced writer
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaLog wraps writer as a delivery log named after topic
func NewKafkaLog(writer KafkaWriter, topic string) *KafkaLog {
	return &KafkaLog{writer: writer, topic: topic}
}

func (l *KafkaLog) Name() string { return "kafka:" + l.topic }

func (l *KafkaLog) Append(ctx context.Context, msg *models.OutboundMessage) error {
	err := l.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Topic),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "mqtt_topic", Value: []byte(msg.Topic)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write to kafka topic %s: %w", l.topic, err)
	}
	return nil
}

func (l *KafkaLog) Close() error {
	return l.writer.Close()
}
