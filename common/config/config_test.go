package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "sensorica",
		Password: "secret",
		Database: "factory",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=sensorica password=secret dbname=factory sslmode=disable", cfg.GetDSN())
}

func TestDatabaseConfig_LoadFromEnv_IgnoresBadPort(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()
	os.Setenv("PG_HOST", "pg.local")
	os.Setenv("PG_PORT", "not-a-port")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432}
	cfg.LoadFromEnv("PG")

	assert.Equal(t, "pg.local", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
}

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Run("legacy server pair wins over broker", func(t *testing.T) {
		os.Clearenv()
		defer os.Clearenv()
		os.Setenv("MQTT_BROKER", "tcp://ignored:1883")
		os.Setenv("MQTT_SENSORICA_SERVER", "10.0.0.5")

		cfg := MQTTConfig{}
		cfg.LoadFromEnv("MQTT")
		assert.Equal(t, "tcp://10.0.0.5:1883", cfg.Broker)
	})

	t.Run("scheme kept", func(t *testing.T) {
		os.Clearenv()
		defer os.Clearenv()
		os.Setenv("MQTT_SENSORICA_SERVER", "ssl://broker")
		os.Setenv("MQTT_SENSORICA_PORT", "8883")

		cfg := MQTTConfig{}
		cfg.LoadFromEnv("MQTT")
		assert.Equal(t, "ssl://broker:8883", cfg.Broker)
	})

	t.Run("qos out of range ignored", func(t *testing.T) {
		os.Clearenv()
		defer os.Clearenv()
		os.Setenv("MQTT_QOS", "3")

		cfg := MQTTConfig{QoS: 1}
		cfg.LoadFromEnv("MQTT")
		assert.Equal(t, byte(1), cfg.QoS)
	})
}

func TestKafkaConfig_LoadFromEnv(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	cfg := KafkaConfig{Brokers: []string{"localhost:9092"}}
	cfg.LoadFromEnv("KAFKA")
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)

	os.Setenv("KAFKA_BROKERS", "a:9092,, b:9092 ")
	cfg.LoadFromEnv("KAFKA")
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers)
}
