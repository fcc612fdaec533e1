package redis

import (
	"context"
	"fmt"
	"time"

	"sensorica-ingest/common/config"

	"github.com/go-redis/redis/v8"
)

// Connect creates a client and pings it; the client is closed again when the ping fails
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Close tolerates a nil client
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
