package processor

import (
	"context"

	"sensorica-ingest/internal/models"
)

// Processor handles one decoded reading for a device of its model kind.
// Implementations mutate device in place; the dispatcher serialises calls.
type Processor interface {
	Process(ctx context.Context, device *models.DeviceConfig, reading float64, body map[string]any) error
}

// DeviceStore running state persistence on the device registry
type DeviceStore interface {
	UpdateLastValue(ctx context.Context, id int64, value float64) error
	SaveWeightState(ctx context.Context, d *models.DeviceConfig) error
	UpdateDimensionMax(ctx context.Context, id int64, value float64) error
	PropagateDimension(ctx context.Context, sourceID int64, value float64) (int64, error)
}

// ControlStore append-only production records
type ControlStore interface {
	InsertControlWeight(ctx context.Context, rec *models.ControlWeightRecord) error
	InsertControlHeight(ctx context.Context, rec *models.ControlHeightRecord) error
}

// TrafficStore traffic state log
type TrafficStore interface {
	LatestTrafficEvent(ctx context.Context, deviceID int64) (*models.TrafficEvent, error)
	InsertTrafficEvent(ctx context.Context, deviceID int64, value float64) error
}

// CallbackQueue pending external callback requests
type CallbackQueue interface {
	OldestUnused(ctx context.Context, deviceID int64) (*models.APICallbackRequest, error)
	MarkUsed(ctx context.Context, id int64) error
}

// Publisher outbound bus messages; delivery failures never reach the caller
type Publisher interface {
	Publish(ctx context.Context, topic string, message any)
}

// Notifier sends a completed box to the URL of a callback request and marks it used
type Notifier interface {
	Notify(ctx context.Context, req *models.APICallbackRequest, box *models.CompletedBox) error
}

// LabelPrinter prints the label of a completed box
type LabelPrinter interface {
	Print(ctx context.Context, device *models.DeviceConfig, labelID string) error
}
