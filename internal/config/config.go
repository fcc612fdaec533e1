package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sensorica-ingest/common/config"
)

// Config ingest service configuration
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	Kafka    config.KafkaConfig

	// Main loop settings
	Ingest struct {
		LoopInterval  time.Duration // sleep between iterations
		DrainWait     time.Duration // bounded wait for bus messages per iteration
		QueueSize     int           // buffered inbound messages between paho and the loop
		ReloadChannel string        // redis pub/sub channel carrying config-changed notifications, empty disables
	}

	// Delivery log targets, "<kind>:<name>" with kind postgres|redis|kafka|mqtt
	Outbox struct {
		Primary      string
		Secondary    string
		StreamMaxLen int64
	}

	// External callback settings
	ExternalAPI struct {
		Method  string // put | post
		Model   string // dataToSend | dataToSend2 | dataToSend3
		UseCurl bool
		Timeout time.Duration
	}

	Printer struct {
		LabelFormat  string // png | pdf
		SpoolCommand string
		Timeout      time.Duration
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "sensorica"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.MaxLifetime = 30 * time.Minute
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "sensorica-ingest-")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 0
	cfg.MQTT.KeepAlive = 60 * time.Second
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.LoadFromEnv("KAFKA")

	cfg.Ingest.LoopInterval = getEnvDuration("INGEST_LOOP_INTERVAL_MS", 100*time.Millisecond)
	cfg.Ingest.DrainWait = getEnvDuration("INGEST_DRAIN_WAIT_MS", time.Second)
	cfg.Ingest.QueueSize = getEnvInt("INGEST_QUEUE_SIZE", 256)
	cfg.Ingest.ReloadChannel = getEnv("INGEST_RELOAD_CHANNEL", "")

	cfg.Outbox.Primary = getEnv("OUTBOX_PRIMARY", "postgres:mqtt_send_server1")
	cfg.Outbox.Secondary = getEnv("OUTBOX_SECONDARY", "postgres:mqtt_send_server2")
	cfg.Outbox.StreamMaxLen = int64(getEnvInt("OUTBOX_STREAM_MAXLEN", 100000))

	cfg.ExternalAPI.Method = strings.ToLower(getEnv("EXTERNAL_API_QUEUE_TYPE", "put"))
	cfg.ExternalAPI.Model = getEnv("EXTERNAL_API_QUEUE_MODEL", "dataToSend")
	cfg.ExternalAPI.UseCurl = getEnvBool("USE_CURL", false)
	cfg.ExternalAPI.Timeout = getEnvDuration("EXTERNAL_API_TIMEOUT_MS", 10*time.Second)

	cfg.Printer.LabelFormat = strings.ToLower(getEnv("PRINTER_LABEL_FORMAT", "png"))
	cfg.Printer.SpoolCommand = getEnv("PRINTER_SPOOL_COMMAND", "lp")
	cfg.Printer.Timeout = getEnvDuration("PRINTER_TIMEOUT_MS", 10*time.Second)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// UsesRedis reports whether any configured component needs the redis client
func (c *Config) UsesRedis() bool {
	return c.Ingest.ReloadChannel != "" ||
		strings.HasPrefix(c.Outbox.Primary, "redis:") ||
		strings.HasPrefix(c.Outbox.Secondary, "redis:")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return defaultValue
}
