package models

import (
	"encoding/json"
	"time"
)

// ControlWeightRecord one completed box (control_weights)
type ControlWeightRecord struct {
	DeviceID  int64
	Weight    float64
	Dimension float64
	BoxNumber int64
	BoxShift  int64
	Barcode   string
}

// ControlHeightRecord one finished height cycle (control_heights)
type ControlHeightRecord struct {
	DeviceID    int64
	HeightValue float64
}

// TrafficEvent presence/traffic state change (live_traffic_monitors)
type TrafficEvent struct {
	ID        int64
	DeviceID  int64
	Value     float64
	CreatedAt time.Time
}

// APICallbackRequest pending external notification (api_queue_prints)
type APICallbackRequest struct {
	ID        int64
	DeviceID  int64
	URL       string
	Token     string
	Value     float64
	Used      bool
	CreatedAt time.Time
}

// PrinterType where a label is rendered
type PrinterType int

const (
	PrinterLocal  PrinterType = 0
	PrinterRemote PrinterType = 1
)

// Printer label printer attached to a line
type Printer struct {
	ID          int64
	Name        string
	Type        PrinterType
	APIEndpoint string
}

// OutboundMessage one message written to the delivery logs
type OutboundMessage struct {
	Topic     string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// CompletedBox data handed to callbacks once a box leaves the scale
type CompletedBox struct {
	DeviceID  int64
	BoxNumber int64
	MaxKg     float64
	Dimension int
	Barcode   string
}
