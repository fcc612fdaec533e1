package outbox

import (
	"context"
	"fmt"
	"time"

	rediscommon "sensorica-ingest/common/redis"
	"sensorica-ingest/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisStreamLog appends to a Redis stream, one entry per message
type RedisStreamLog struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamLog creates a stream-backed delivery log; maxLen <= 0 leaves it uncapped
func NewRedisStreamLog(client *redis.Client, stream string, maxLen int64) *RedisStreamLog {
	return &RedisStreamLog{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (l *RedisStreamLog) Name() string { return "redis:" + l.stream }

func (l *RedisStreamLog) Append(ctx context.Context, msg *models.OutboundMessage) error {
	_, err := rediscommon.PublishToStream(ctx, l.client, l.stream, l.maxLen, map[string]interface{}{
		"topic":      msg.Topic,
		"payload":    []byte(msg.Payload),
		"created_at": msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", l.stream, err)
	}
	return nil
}
