package consumer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	mqttcommon "sensorica-ingest/common/mqtt"
	"sensorica-ingest/internal/metrics"

	"go.uber.org/zap"
)

// Bus subset of the mqtt client used by the consumer
type Bus interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
	Disconnect()
	IsConnected() bool
}

// TopicSource lists the topics that should be subscribed
type TopicSource interface {
	ListTopics(ctx context.Context) ([]string, error)
}

// Handler processes one bus message on the loop goroutine
type Handler func(ctx context.Context, topic string, payload []byte) error

// Options loop tuning
type Options struct {
	QoS          byte
	LoopInterval time.Duration
	DrainWait    time.Duration
	QueueSize    int
}

type message struct {
	topic   string
	payload []byte
}

// MQTTConsumer keeps one subscription per registry topic and runs the
// single processing loop. Paho goroutines only enqueue; every handler call
// happens on the goroutine running Start.
type MQTTConsumer struct {
	bus     Bus
	topics  TopicSource
	handler Handler
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	inbox       chan message
	reload      chan struct{}
	resubscribe atomic.Bool

	mu         sync.RWMutex
	subscribed map[string]struct{}
}

// NewMQTTConsumer creates the consumer
func NewMQTTConsumer(bus Bus, topics TopicSource, handler Handler, opts Options, logger *zap.Logger, m *metrics.Metrics) *MQTTConsumer {
	if opts.LoopInterval <= 0 {
		opts.LoopInterval = 100 * time.Millisecond
	}
	if opts.DrainWait <= 0 {
		opts.DrainWait = time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &MQTTConsumer{
		bus:        bus,
		topics:     topics,
		handler:    handler,
		opts:       opts,
		logger:     logger,
		metrics:    m,
		inbox:      make(chan message, opts.QueueSize),
		reload:     make(chan struct{}, 1),
		subscribed: make(map[string]struct{}),
	}
}

// NotifyConfigChanged asks the loop to resynchronise with the registry,
// dropping subscriptions whose topic is gone. Safe from any goroutine.
func (c *MQTTConsumer) NotifyConfigChanged() {
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

// Resubscribe asks the loop to subscribe every topic again, used after the
// broker dropped the session.
func (c *MQTTConsumer) Resubscribe() {
	c.resubscribe.Store(true)
}

// ActiveTopics sorted snapshot of the subscribed topics
func (c *MQTTConsumer) ActiveTopics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]string, 0, len(c.subscribed))
	for t := range c.subscribed {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Connected reports the bus connection state
func (c *MQTTConsumer) Connected() bool {
	return c.bus.IsConnected()
}

// Start subscribes the initial topics and runs the loop until ctx is done,
// then disconnects from the bus.
func (c *MQTTConsumer) Start(ctx context.Context) error {
	topics, err := c.topics.ListTopics(ctx)
	if err != nil {
		c.bus.Disconnect()
		return fmt.Errorf("failed to list initial topics: %w", err)
	}
	c.subscribeAll(topics)
	c.logger.Info("Subscribed to initial topics", zap.Int("count", len(c.ActiveTopics())))

	for ctx.Err() == nil {
		c.iterate(ctx)
	}

	c.bus.Disconnect()
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// iterate one pass: topic sync, bounded drain, sleep
func (c *MQTTConsumer) iterate(ctx context.Context) {
	c.syncTopics(ctx)
	c.drain(ctx)

	if ctx.Err() != nil {
		return
	}
	timer := time.NewTimer(c.opts.LoopInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (c *MQTTConsumer) syncTopics(ctx context.Context) {
	prune := false
	select {
	case <-c.reload:
		prune = true
	default:
	}
	if c.resubscribe.Swap(false) {
		c.logger.Info("Resubscribing after reconnect")
		c.mu.Lock()
		c.subscribed = make(map[string]struct{})
		c.mu.Unlock()
	}

	topics, err := c.topics.ListTopics(ctx)
	if err != nil {
		c.logger.Error("Failed to list topics", zap.Error(err))
		return
	}

	c.subscribeAll(topics)
	if prune {
		c.logger.Info("Configuration changed, resynchronising subscriptions")
		c.unsubscribeMissing(topics)
	}
}

func (c *MQTTConsumer) subscribeAll(topics []string) {
	for _, topic := range topics {
		if topic == "" || c.isSubscribed(topic) {
			continue
		}
		if err := c.bus.Subscribe(topic, c.opts.QoS, c.enqueue); err != nil {
			c.logger.Error("Failed to subscribe", zap.String("topic", topic), zap.Error(err))
			continue
		}
		c.mu.Lock()
		c.subscribed[topic] = struct{}{}
		n := len(c.subscribed)
		c.mu.Unlock()
		c.metrics.SetActiveSubscriptions(n)
		c.logger.Info("Subscribed to topic", zap.String("topic", topic))
	}
}

func (c *MQTTConsumer) unsubscribeMissing(topics []string) {
	current := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		current[t] = struct{}{}
	}

	for _, topic := range c.ActiveTopics() {
		if _, ok := current[topic]; ok {
			continue
		}
		if err := c.bus.Unsubscribe(topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.String("topic", topic), zap.Error(err))
			continue
		}
		c.mu.Lock()
		delete(c.subscribed, topic)
		n := len(c.subscribed)
		c.mu.Unlock()
		c.metrics.SetActiveSubscriptions(n)
		c.logger.Info("Unsubscribed from topic", zap.String("topic", topic))
	}
}

func (c *MQTTConsumer) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscribed[topic]
	return ok
}

// enqueue runs on paho goroutines. It never blocks: blocking paho's
// ordered router would also stall the acks the loop waits on.
func (c *MQTTConsumer) enqueue(topic string, payload []byte) error {
	msg := message{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case c.inbox <- msg:
		return nil
	default:
		c.metrics.MessageDropped(metrics.ReasonQueueFull)
		return fmt.Errorf("inbound queue full (%d), message dropped", cap(c.inbox))
	}
}

// drain handles queued messages until DrainWait elapses or ctx is done.
// A message already taken from the queue is handled to completion.
func (c *MQTTConsumer) drain(ctx context.Context) {
	timer := time.NewTimer(c.opts.DrainWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case msg := <-c.inbox:
			c.handle(ctx, msg)
		}
	}
}

func (c *MQTTConsumer) handle(ctx context.Context, msg message) {
	if err := c.handler(context.WithoutCancel(ctx), msg.topic, msg.payload); err != nil {
		c.logger.Debug("Message not processed",
			zap.String("topic", msg.topic),
			zap.Error(err),
		)
	}
}
