package models

import (
	"strings"
)

// ModelKind processing model of a device
type ModelKind string

const (
	ModelWeight         ModelKind = "weight"
	ModelHeight         ModelKind = "height"
	ModelTrafficMonitor ModelKind = "trafficMonitor"
	ModelUnknown        ModelKind = ""
)

// ParseModelKind maps the stored model_name to a ModelKind.
// "lifeTraficMonitor" is the historical spelling still present in existing rows.
func ParseModelKind(name string) ModelKind {
	switch strings.TrimSpace(name) {
	case "weight":
		return ModelWeight
	case "height":
		return ModelHeight
	case "trafficMonitor", "lifeTraficMonitor":
		return ModelTrafficMonitor
	default:
		return ModelUnknown
	}
}

// CalibrationSoftware calibration_type value for software tare calibration
const CalibrationSoftware = "0"

// DeviceConfig one production line sensor (row of modbuses)
type DeviceConfig struct {
	ID        int64
	Name      string
	Topic     string // subscribed topic (mqtt_topic_modbus)
	BaseTopic string // prefix of derived outbound topics (mqtt_topic)
	ModelName string
	Kind      ModelKind
	JSONPath  []string

	// Calibration
	CalibrationType  string
	ConversionFactor float64
	Tare             float64
	TareCalibrate    float64
	MinKg            float64
	VariationNumber  float64
	RepNumber        int

	// Weight running state
	LastValue       float64
	LastKg          float64
	LastRep         int
	MaxKg           float64
	RecBox          int64
	RecBoxShift     int64
	RecBoxUnlimited int64
	TotalKgOrder    float64
	TotalKgShift    float64

	// Height state
	DimensionDefault   float64
	DimensionMax       float64
	DimensionVariation float64
	OffsetMeter        float64
	Dimension          float64
	DimensionID        *int64

	PrinterID *int64
}

// SoftwareCalibration reports whether tare is subtracted in software
func (d *DeviceConfig) SoftwareCalibration() bool {
	return strings.TrimSpace(d.CalibrationType) == CalibrationSoftware
}

// HasPrinter reports whether a label printer is attached to the line
func (d *DeviceConfig) HasPrinter() bool {
	return d.PrinterID != nil && *d.PrinterID != 0
}

func (d *DeviceConfig) outboundBase() string {
	if d.BaseTopic != "" {
		return d.BaseTopic
	}
	return d.Topic
}

// GrossWeightTopics topics carrying every changed reading
func (d *DeviceConfig) GrossWeightTopics() [2]string {
	base := d.outboundBase()
	return [2]string{base + "1/gross_weight", base + "2/gross_weight"}
}

// ControlWeightTopics topics carrying the completed box control message
func (d *DeviceConfig) ControlWeightTopics() [2]string {
	base := d.outboundBase()
	return [2]string{base + "1/control_weight", base + "2/control_weight"}
}

// BoxCountTopic topic carrying the order box counter
func (d *DeviceConfig) BoxCountTopic() string {
	return d.outboundBase() + "1"
}

// OrderTotalTopic topic carrying the rounded order weight
func (d *DeviceConfig) OrderTotalTopic() string {
	return d.outboundBase() + "2"
}

// ParseJSONPath splits the json_api column ("a, b, c") into ordered keys
func ParseJSONPath(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ", ")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}
