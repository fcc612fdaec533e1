package outbox

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// Target kinds
const (
	KindPostgres = "postgres"
	KindRedis    = "redis"
	KindKafka    = "kafka"
	KindMQTT     = "mqtt"
)

// ErrInvalidTarget returned for a malformed or unsupported target string
var ErrInvalidTarget = errors.New("invalid delivery log target")

// Target parsed "<kind>:<name>" delivery log selector
type Target struct {
	Kind string
	Name string
}

// ParseTarget parses "<kind>:<name>". The name may be empty only for mqtt.
func ParseTarget(raw string) (Target, error) {
	kind, name, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
	t := Target{Kind: strings.ToLower(kind), Name: name}
	switch t.Kind {
	case KindPostgres, KindRedis, KindKafka:
		if t.Name == "" {
			return Target{}, fmt.Errorf("%w: %q has no name", ErrInvalidTarget, raw)
		}
	case KindMQTT:
	default:
		return Target{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, kind)
	}
	return t, nil
}

// Backends connections a delivery log may be built on. Only those named by
// the configured targets need to be set.
type Backends struct {
	DB           *sql.DB
	Redis        *redis.Client
	KafkaBrokers []string
	Bus          BusPublisher
	StreamMaxLen int64
	QoS          byte
}

// Open builds the delivery log selected by raw
func Open(raw string, b Backends) (DeliveryLog, error) {
	t, err := ParseTarget(raw)
	if err != nil {
		return nil, err
	}

	switch t.Kind {
	case KindPostgres:
		if b.DB == nil {
			return nil, fmt.Errorf("%s needs a database connection", raw)
		}
		return NewPostgresLog(b.DB, t.Name), nil
	case KindRedis:
		if b.Redis == nil {
			return nil, fmt.Errorf("%s needs a redis connection", raw)
		}
		return NewRedisStreamLog(b.Redis, t.Name, b.StreamMaxLen), nil
	case KindKafka:
		if len(b.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("%s needs kafka brokers", raw)
		}
		return NewKafkaLog(NewKafkaWriter(b.KafkaBrokers, t.Name), t.Name), nil
	default:
		if b.Bus == nil {
			return nil, fmt.Errorf("%s needs a bus connection", raw)
		}
		return NewMQTTLog(b.Bus, t.Name, b.QoS), nil
	}
}
