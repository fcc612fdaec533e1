package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons
const (
	ReasonDeviceNotFound = "device_not_found"
	ReasonInvalidJSON    = "invalid_json"
	ReasonNoReading      = "no_reading"
	ReasonUnknownModel   = "unknown_model"
	ReasonProcessError   = "process_error"
	ReasonQueueFull      = "queue_full"
)

// Metrics ingest counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived    *prometheus.CounterVec
	messagesDropped     *prometheus.CounterVec
	messagesPartial     *prometheus.CounterVec
	boxesCompleted      *prometheus.CounterVec
	heightCycles        *prometheus.CounterVec
	trafficEvents       *prometheus.CounterVec
	outboxWrites        *prometheus.CounterVec
	callbacks           *prometheus.CounterVec
	labels              *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
}

// New registers all collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "messages_received_total",
			Help:      "Bus messages received per model kind.",
		}, []string{"model"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "messages_dropped_total",
			Help:      "Bus messages dropped before or during processing.",
		}, []string{"reason"}),
		messagesPartial: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "messages_partial_total",
			Help:      "Bus messages processed to the end with non-fatal write errors.",
		}, []string{"model"}),
		boxesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "boxes_completed_total",
			Help:      "Completed boxes per device.",
		}, []string{"device"}),
		heightCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "height_cycles_total",
			Help:      "Finished height cycles per device.",
		}, []string{"device"}),
		trafficEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "traffic_events_total",
			Help:      "Stored traffic state changes per device.",
		}, []string{"device"}),
		outboxWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "outbox_writes_total",
			Help:      "Delivery log writes by log and result.",
		}, []string{"log", "result"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "callbacks_total",
			Help:      "External callback attempts by result.",
		}, []string{"result"}),
		labels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorica",
			Name:      "labels_total",
			Help:      "Label print jobs by printer type and result.",
		}, []string{"printer", "result"}),
		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensorica",
			Name:      "active_subscriptions",
			Help:      "Topics currently subscribed on the bus.",
		}),
	}

	reg.MustRegister(
		m.messagesReceived,
		m.messagesDropped,
		m.messagesPartial,
		m.boxesCompleted,
		m.heightCycles,
		m.trafficEvents,
		m.outboxWrites,
		m.callbacks,
		m.labels,
		m.activeSubscriptions,
	)
	return m
}

// Registry exposes the collectors for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MessageReceived(model string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(model).Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.messagesDropped.WithLabelValues(reason).Inc()
}

// MessagePartial counts a message whose pipeline ran but some writes failed
func (m *Metrics) MessagePartial(model string) {
	if m == nil {
		return
	}
	m.messagesPartial.WithLabelValues(model).Inc()
}

func (m *Metrics) BoxCompleted(device string) {
	if m == nil {
		return
	}
	m.boxesCompleted.WithLabelValues(device).Inc()
}

func (m *Metrics) HeightCycle(device string) {
	if m == nil {
		return
	}
	m.heightCycles.WithLabelValues(device).Inc()
}

func (m *Metrics) TrafficEvent(device string) {
	if m == nil {
		return
	}
	m.trafficEvents.WithLabelValues(device).Inc()
}

func (m *Metrics) OutboxWrite(log string, err error) {
	if m == nil {
		return
	}
	m.outboxWrites.WithLabelValues(log, result(err)).Inc()
}

func (m *Metrics) Callback(res string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(res).Inc()
}

func (m *Metrics) Label(printer string, err error) {
	if m == nil {
		return
	}
	m.labels.WithLabelValues(printer, result(err)).Inc()
}

func (m *Metrics) SetActiveSubscriptions(n int) {
	if m == nil {
		return
	}
	m.activeSubscriptions.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
