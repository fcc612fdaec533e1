package notifier

import (
	"net/url"
	"strconv"

	"sensorica-ingest/internal/models"
)

// Payload variants, selected by EXTERNAL_API_QUEUE_MODEL
const (
	ModelStructured = "dataToSend"
	ModelFlat       = "dataToSend2"
	ModelForm       = "dataToSend3"
)

// StructuredPayload full box record for callers that parse JSON
type StructuredPayload struct {
	Token         string  `json:"token"`
	RecBox        int64   `json:"rec_box"`
	MaxKg         float64 `json:"max_kg"`
	LastDimension int     `json:"last_dimension"`
	LastBarcoder  string  `json:"last_barcoder"`
	UsedValue     float64 `json:"used_value"`
}

// NewStructuredPayload builds the dataToSend variant
func NewStructuredPayload(req *models.APICallbackRequest, box *models.CompletedBox) StructuredPayload {
	return StructuredPayload{
		Token:         req.Token,
		RecBox:        box.BoxNumber,
		MaxKg:         box.MaxKg,
		LastDimension: box.Dimension,
		LastBarcoder:  box.Barcode,
		UsedValue:     req.Value,
	}
}

// FlatPayload builds the dataToSend2 variant: height, weight and used value as strings
func FlatPayload(req *models.APICallbackRequest, box *models.CompletedBox) map[string]string {
	return map[string]string{
		"alto":       strconv.Itoa(box.Dimension),
		"peso":       formatNumber(box.MaxKg),
		"used_value": formatNumber(req.Value),
	}
}

// FormPayload url-encodes the flat variant (dataToSend3)
func FormPayload(req *models.APICallbackRequest, box *models.CompletedBox) string {
	values := url.Values{}
	for k, v := range FlatPayload(req, box) {
		values.Set(k, v)
	}
	return values.Encode()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
