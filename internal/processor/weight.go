package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"
	"sensorica-ingest/internal/repository"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

// ErrZeroConversionFactor a weight device with conversion_factor 0 cannot be calibrated
var ErrZeroConversionFactor = errors.New("conversion factor is zero")

// WeightProcessor calibrates scale readings, publishes gross weight and
// detects completed boxes.
type WeightProcessor struct {
	devices   DeviceStore
	controls  ControlStore
	callbacks CallbackQueue
	publisher Publisher
	notifier  Notifier
	printer   LabelPrinter
	logger    *zap.Logger
	metrics   *metrics.Metrics

	now        func() time.Time
	newLabelID func() string
}

// NewWeightProcessor creates the weight processor
func NewWeightProcessor(
	devices DeviceStore,
	controls ControlStore,
	callbacks CallbackQueue,
	publisher Publisher,
	notifier Notifier,
	printer LabelPrinter,
	logger *zap.Logger,
	m *metrics.Metrics,
) *WeightProcessor {
	return &WeightProcessor{
		devices:    devices,
		controls:   controls,
		callbacks:  callbacks,
		publisher:  publisher,
		notifier:   notifier,
		printer:    printer,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
		newLabelID: func() string { return xid.New().String() },
	}
}

// Process runs calibration, gross weight publishing and box tracking, then
// persists the running state. Persistence failures do not stop the pipeline;
// they are returned together once it has finished.
func (p *WeightProcessor) Process(ctx context.Context, d *models.DeviceConfig, reading float64, body map[string]any) error {
	if d.ConversionFactor == 0 {
		return fmt.Errorf("device %d: %w", d.ID, ErrZeroConversionFactor)
	}

	updated := p.calibrate(d, reading)

	var errs []error
	if err := p.publishGross(ctx, d, updated); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, p.trackBox(ctx, d, updated, body)...)

	if err := p.devices.SaveWeightState(ctx, d); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *WeightProcessor) calibrate(d *models.DeviceConfig, reading float64) float64 {
	updated := reading / d.ConversionFactor
	if !d.SoftwareCalibration() {
		return updated
	}
	if updated > d.TareCalibrate {
		updated -= d.TareCalibrate
	}
	if updated > d.Tare {
		updated -= d.Tare
	}
	return updated
}

func (p *WeightProcessor) publishGross(ctx context.Context, d *models.DeviceConfig, updated float64) error {
	if updated == d.LastValue {
		p.logger.Info("Same value, gross weight not published",
			zap.Int64("device_id", d.ID),
			zap.Float64("value", updated),
		)
		return nil
	}

	var err error
	if err = p.devices.UpdateLastValue(ctx, d.ID, updated); err != nil {
		p.logger.Error("Failed to update last value",
			zap.Int64("device_id", d.ID),
			zap.Float64("previous", d.LastValue),
			zap.Float64("value", updated),
			zap.Error(err),
		)
	}
	d.LastValue = updated

	msg := models.GrossWeightMessage{Value: updated, Time: p.timestamp()}
	for _, topic := range d.GrossWeightTopics() {
		p.publisher.Publish(ctx, topic, msg)
	}
	return err
}

func (p *WeightProcessor) trackBox(ctx context.Context, d *models.DeviceConfig, updated float64, body map[string]any) []error {
	switch {
	case updated >= d.MinKg:
		if math.Abs(updated-d.LastKg) <= d.VariationNumber {
			d.LastRep++
			if d.LastRep >= d.RepNumber && updated > d.MaxKg {
				p.logger.Info("Repetitions reached, new peak",
					zap.Int64("device_id", d.ID),
					zap.Float64("max_kg", updated),
				)
				d.MaxKg = updated
				d.LastRep = 0
			}
		} else {
			d.LastRep = 0
		}
		d.LastKg = updated
		return nil
	case d.MaxKg > d.MinKg && updated < d.MinKg:
		return p.completeBox(ctx, d, body)
	default:
		return nil
	}
}

func (p *WeightProcessor) completeBox(ctx context.Context, d *models.DeviceConfig, body map[string]any) []error {
	var errs []error

	if raw, ok := body["check"]; ok && raw != nil {
		if check, ok := models.NumericValue(raw); ok {
			d.MaxKg = check / d.ConversionFactor
			p.logger.Info("Peak taken from check field",
				zap.Int64("device_id", d.ID),
				zap.Float64("max_kg", d.MaxKg),
			)
		} else {
			p.logger.Warn("Ignoring non numeric check field",
				zap.Int64("device_id", d.ID),
				zap.Any("check", raw),
			)
		}
	}

	dimension := int(d.Dimension)
	control := models.NewControlWeightMessage(d.MaxKg, dimension, p.timestamp())
	for _, topic := range d.ControlWeightTopics() {
		p.publisher.Publish(ctx, topic, control)
	}

	d.RecBox++
	d.RecBoxShift++
	d.RecBoxUnlimited++
	labelID := p.newLabelID()

	rec := &models.ControlWeightRecord{
		DeviceID:  d.ID,
		Weight:    d.MaxKg,
		Dimension: float64(dimension),
		BoxNumber: d.RecBox,
		BoxShift:  d.RecBoxShift,
		Barcode:   labelID,
	}
	if err := p.controls.InsertControlWeight(ctx, rec); err != nil {
		p.logger.Error("Failed to store control weight",
			zap.Int64("device_id", d.ID),
			zap.Error(err),
		)
		errs = append(errs, err)
	}

	d.TotalKgShift += d.MaxKg
	d.TotalKgOrder += d.MaxKg

	box := &models.CompletedBox{
		DeviceID:  d.ID,
		BoxNumber: d.RecBox,
		MaxKg:     d.MaxKg,
		Dimension: dimension,
		Barcode:   labelID,
	}

	d.MaxKg = 0
	d.LastKg = 0
	d.LastRep = 0
	d.Dimension = 0

	p.publisher.Publish(ctx, d.BoxCountTopic(), models.StatusMessage{Value: d.RecBox, Status: 2})
	p.publisher.Publish(ctx, d.OrderTotalTopic(), models.StatusMessage{Value: int64(math.Round(d.TotalKgOrder)), Status: 2})

	p.metrics.BoxCompleted(strconv.FormatInt(d.ID, 10))
	p.logger.Info("Box completed",
		zap.Int64("device_id", d.ID),
		zap.Int64("rec_box", box.BoxNumber),
		zap.Float64("max_kg", box.MaxKg),
		zap.Int("dimension", box.Dimension),
		zap.String("barcode", labelID),
	)

	if err := p.runCallback(ctx, d, box); err != nil {
		errs = append(errs, err)
	}

	if d.HasPrinter() {
		if err := p.printer.Print(ctx, d, labelID); err != nil {
			p.logger.Error("Failed to print label",
				zap.Int64("device_id", d.ID),
				zap.String("barcode", labelID),
				zap.Error(err),
			)
		}
	}
	return errs
}

// runCallback consumes the oldest pending callback request of the device
func (p *WeightProcessor) runCallback(ctx context.Context, d *models.DeviceConfig, box *models.CompletedBox) error {
	req, err := p.callbacks.OldestUnused(ctx, d.ID)
	if errors.Is(err, repository.ErrNotFound) {
		p.logger.Debug("No callback request pending", zap.Int64("device_id", d.ID))
		return nil
	}
	if err != nil {
		p.logger.Error("Failed to load callback request",
			zap.Int64("device_id", d.ID),
			zap.Error(err),
		)
		return err
	}

	if req.Value == 0 {
		p.metrics.Callback("skipped")
		p.logger.Info("Callback request with value 0, not calling",
			zap.Int64("device_id", d.ID),
			zap.Int64("request_id", req.ID),
		)
		return p.callbacks.MarkUsed(ctx, req.ID)
	}

	return p.notifier.Notify(ctx, req, box)
}

// timestamp ISO-8601 with offset
func (p *WeightProcessor) timestamp() string {
	return p.now().Format(time.RFC3339)
}
