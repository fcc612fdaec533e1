package outbox

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	rediscommon "sensorica-ingest/common/redis"
	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryLog struct {
	name     string
	err      error
	messages []*models.OutboundMessage
	closed   bool
}

func (l *memoryLog) Name() string { return l.name }

func (l *memoryLog) Append(_ context.Context, msg *models.OutboundMessage) error {
	if l.err != nil {
		return l.err
	}
	l.messages = append(l.messages, msg)
	return nil
}

func (l *memoryLog) Close() error {
	l.closed = true
	return nil
}

func TestPublisher_WritesBothLogs(t *testing.T) {
	primary := &memoryLog{name: "a"}
	secondary := &memoryLog{name: "b"}
	p := NewPublisher(primary, secondary, zap.NewNop(), metrics.New())
	fixed := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	p.Publish(context.Background(), "line/1/gross_weight", models.GrossWeightMessage{Value: 12.4, Time: "t"})

	require.Len(t, primary.messages, 1)
	require.Len(t, secondary.messages, 1)
	assert.Equal(t, "line/1/gross_weight", primary.messages[0].Topic)
	assert.JSONEq(t, `{"value":12.4,"time":"t"}`, string(primary.messages[0].Payload))
	assert.Equal(t, fixed, secondary.messages[0].CreatedAt)
}

func TestPublisher_FailureIsIsolated(t *testing.T) {
	primary := &memoryLog{name: "a", err: errors.New("table missing")}
	secondary := &memoryLog{name: "b"}
	p := NewPublisher(primary, secondary, zap.NewNop(), nil)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), "line/1", models.StatusMessage{Value: 3, Status: 2})
	})
	assert.Empty(t, primary.messages)
	require.Len(t, secondary.messages, 1)
	assert.JSONEq(t, `{"value":3,"status":2}`, string(secondary.messages[0].Payload))
}

func TestPublisher_UnencodableMessage(t *testing.T) {
	primary := &memoryLog{name: "a"}
	p := NewPublisher(primary, nil, zap.NewNop(), nil)

	p.Publish(context.Background(), "line/1", map[string]any{"bad": make(chan int)})
	assert.Empty(t, primary.messages)
}

func TestPublisher_Close(t *testing.T) {
	primary := &memoryLog{name: "a"}
	secondary := &memoryLog{name: "b"}
	p := NewPublisher(primary, secondary, zap.NewNop(), nil)

	require.NoError(t, p.Close())
	assert.True(t, primary.closed)
	assert.True(t, secondary.closed)
}

func TestPostgresLog_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewPostgresLog(db, "mqtt_send_server1")
	assert.Equal(t, "postgres:mqtt_send_server1", log.Name())

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "mqtt_send_server1" (topic, json_message`)).
		WithArgs("line/1", `{"value":1}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = log.Append(context.Background(), &models.OutboundMessage{
		Topic:     "line/1",
		Payload:   []byte(`{"value":1}`),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStreamLog_Append(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	log := NewRedisStreamLog(client, "sensorica:outbox", 1000)
	err := log.Append(context.Background(), &models.OutboundMessage{
		Topic:     "line/2",
		Payload:   []byte(`{"value":7,"status":2}`),
		CreatedAt: time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	entries, err := rediscommon.ReadRange(context.Background(), client, "sensorica:outbox", "-", "+")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "line/2", entries[0].Values["topic"])
	assert.Equal(t, `{"value":7,"status":2}`, entries[0].Values["payload"])
	assert.Equal(t, "2024-09-01T10:00:00Z", entries[0].Values["created_at"])
}

type fakeKafkaWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeKafkaWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaLog_Append(t *testing.T) {
	w := &fakeKafkaWriter{}
	log := NewKafkaLog(w, "sensorica.outbox")

	err := log.Append(context.Background(), &models.OutboundMessage{Topic: "line/1/control_weight", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)
	assert.Equal(t, []byte("line/1/control_weight"), w.messages[0].Key)
	assert.Equal(t, "mqtt_topic", w.messages[0].Headers[0].Key)

	require.NoError(t, log.Close())
	assert.True(t, w.closed)
}

type fakeBus struct {
	topics []string
	err    error
}

func (b *fakeBus) Publish(topic string, _ byte, _ bool, _ []byte) error {
	b.topics = append(b.topics, topic)
	return b.err
}

func TestMQTTLog_Append(t *testing.T) {
	bus := &fakeBus{}
	log := NewMQTTLog(bus, "mirror/", 1)

	require.NoError(t, log.Append(context.Background(), &models.OutboundMessage{Topic: "line/1"}))
	assert.Equal(t, []string{"mirror/line/1"}, bus.topics)

	bus.err = errors.New("not connected")
	assert.Error(t, log.Append(context.Background(), &models.OutboundMessage{Topic: "line/1"}))
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw     string
		want    Target
		wantErr bool
	}{
		{raw: "postgres:mqtt_send_server1", want: Target{Kind: KindPostgres, Name: "mqtt_send_server1"}},
		{raw: "REDIS:outbox", want: Target{Kind: KindRedis, Name: "outbox"}},
		{raw: "kafka:sensorica.outbox", want: Target{Kind: KindKafka, Name: "sensorica.outbox"}},
		{raw: "mqtt:", want: Target{Kind: KindMQTT}},
		{raw: "postgres:", wantErr: true},
		{raw: "sqlite:x", wantErr: true},
		{raw: "mqtt_send_server1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_MissingBackend(t *testing.T) {
	_, err := Open("postgres:mqtt_send_server1", Backends{})
	assert.Error(t, err)

	_, err = Open("kafka:outbox", Backends{})
	assert.Error(t, err)

	l, err := Open("mqtt:mirror/", Backends{Bus: &fakeBus{}})
	require.NoError(t, err)
	assert.Equal(t, "mqtt:mirror/", l.Name())
}
