package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.MessageReceived("weight")
	m.MessageReceived("weight")
	m.MessageDropped(ReasonInvalidJSON)
	m.MessagePartial("height")
	m.OutboxWrite("postgres:mqtt_send_server1", nil)
	m.OutboxWrite("postgres:mqtt_send_server1", errors.New("down"))
	m.SetActiveSubscriptions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesReceived.WithLabelValues("weight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesDropped.WithLabelValues(ReasonInvalidJSON)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesPartial.WithLabelValues("height")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxWrites.WithLabelValues("postgres:mqtt_send_server1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxWrites.WithLabelValues("postgres:mqtt_send_server1", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSubscriptions))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageReceived("weight")
		m.MessageDropped(ReasonNoReading)
		m.MessagePartial("weight")
		m.BoxCompleted("1")
		m.Label("local", nil)
		m.SetActiveSubscriptions(1)
	})
	assert.Nil(t, m.Registry())
}
