package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"
	"sensorica-ingest/internal/processor"
	"sensorica-ingest/internal/repository"

	"go.uber.org/zap"
)

var (
	// ErrNoReading no scalar reading could be extracted from the payload
	ErrNoReading = errors.New("no reading in payload")
	// ErrUnknownModel no processor registered for the device's model
	ErrUnknownModel = errors.New("unknown model")
)

// DeviceResolver finds the device subscribed on a topic
type DeviceResolver interface {
	GetByTopic(ctx context.Context, topic string) (*models.DeviceConfig, error)
}

// Dispatcher decodes bus payloads and routes readings to the processor of
// the owning device's model.
type Dispatcher struct {
	devices    DeviceResolver
	processors map[models.ModelKind]processor.Processor
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New creates a dispatcher with no processors registered
func New(devices DeviceResolver, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		devices:    devices,
		processors: make(map[models.ModelKind]processor.Processor),
		logger:     logger,
		metrics:    m,
	}
}

// Register binds p to kind, replacing any previous processor
func (d *Dispatcher) Register(kind models.ModelKind, p processor.Processor) {
	d.processors[kind] = p
}

// Dispatch handles one bus message. Every returned error means the message
// was dropped or only partly processed; none of them is fatal to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, payload []byte) error {
	device, err := d.devices.GetByTopic(ctx, topic)
	if err != nil {
		d.drop(metrics.ReasonDeviceNotFound)
		if errors.Is(err, repository.ErrNotFound) {
			d.logger.Error("No device for topic, it may have been deleted",
				zap.String("topic", topic),
			)
		} else {
			d.logger.Error("Failed to resolve device", zap.String("topic", topic), zap.Error(err))
		}
		return err
	}

	body, err := decode(payload)
	if err != nil {
		d.drop(metrics.ReasonInvalidJSON)
		d.logger.Error("Payload is not a JSON object",
			zap.String("topic", topic),
			zap.Int64("device_id", device.ID),
			zap.Error(err),
		)
		return err
	}

	reading, err := d.extract(device, body)
	if err != nil {
		d.drop(metrics.ReasonNoReading)
		d.logger.Error("No value found in payload",
			zap.String("topic", topic),
			zap.Int64("device_id", device.ID),
			zap.Strings("json_path", device.JSONPath),
		)
		return err
	}

	d.logger.Info("Message",
		zap.String("name", device.Name),
		zap.Int64("device_id", device.ID),
		zap.String("topic", topic),
		zap.Float64("value", reading),
	)

	proc, ok := d.processors[device.Kind]
	if !ok {
		d.drop(metrics.ReasonUnknownModel)
		d.logger.Warn("Unknown model",
			zap.Int64("device_id", device.ID),
			zap.String("model", device.ModelName),
		)
		return fmt.Errorf("%w: %q", ErrUnknownModel, device.ModelName)
	}

	d.metrics.MessageReceived(string(device.Kind))
	if err := proc.Process(ctx, device, reading, body); err != nil {
		if errors.Is(err, processor.ErrZeroConversionFactor) {
			d.drop(metrics.ReasonProcessError)
		} else {
			// pipeline ran to the end, only some writes failed
			d.metrics.MessagePartial(string(device.Kind))
		}
		d.logger.Error("Failed to process message",
			zap.Int64("device_id", device.ID),
			zap.String("model", string(device.Kind)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (d *Dispatcher) drop(reason string) {
	d.metrics.MessageDropped(reason)
}

func (d *Dispatcher) extract(device *models.DeviceConfig, body map[string]any) (float64, error) {
	if len(device.JSONPath) > 0 {
		if v, ok := ExtractPath(body, device.JSONPath); ok {
			return v, nil
		}
		d.logger.Warn("Path not found in payload, falling back to value",
			zap.Int64("device_id", device.ID),
			zap.Strings("json_path", device.JSONPath),
		)
	}
	if v, ok := models.NumericValue(body["value"]); ok {
		return v, nil
	}
	return 0, ErrNoReading
}

// ExtractPath returns the "value" member of the first key in path present in
// body. Later keys are not tried once a present key lacks a usable value.
func ExtractPath(body map[string]any, path []string) (float64, bool) {
	for _, key := range path {
		raw, ok := body[key]
		if !ok || raw == nil {
			continue
		}
		nested, ok := raw.(map[string]any)
		if !ok {
			return 0, false
		}
		return models.NumericValue(nested["value"])
	}
	return 0, false
}

func decode(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON payload")
	}
	if body == nil {
		return nil, errors.New("payload is null")
	}
	return body, nil
}
