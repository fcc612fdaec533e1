package models

// GrossWeightMessage published whenever the calibrated reading changes
type GrossWeightMessage struct {
	Value float64 `json:"value"`
	Time  string  `json:"time"`
}

// ControlWeightMessage published once per completed box
type ControlWeightMessage struct {
	Type        string  `json:"type"`
	Unit        string  `json:"unit"`
	Value       float64 `json:"value"`
	Excess      string  `json:"excess"`
	TotalExcess string  `json:"total_excess"`
	Rating      string  `json:"rating"`
	Time        string  `json:"time"`
	Check       string  `json:"check"`
	Dimension   int     `json:"dimension"`
}

// NewControlWeightMessage fills the constant fields of a control message
func NewControlWeightMessage(maxKg float64, dimension int, at string) ControlWeightMessage {
	return ControlWeightMessage{
		Type:        "NoEPC",
		Unit:        "Kg",
		Value:       maxKg,
		Excess:      "0",
		TotalExcess: "0",
		Rating:      "1",
		Time:        at,
		Check:       "1",
		Dimension:   dimension,
	}
}

// StatusMessage box counter / running total update
type StatusMessage struct {
	Value  int64 `json:"value"`
	Status int   `json:"status"`
}
