package processor

import (
	"context"
	"errors"
	"strconv"

	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"

	"go.uber.org/zap"
)

// HeightProcessor tracks the peak height of a load cycle and shares it with
// the weight devices linked through dimension_id.
type HeightProcessor struct {
	devices  DeviceStore
	controls ControlStore
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewHeightProcessor creates the height processor
func NewHeightProcessor(devices DeviceStore, controls ControlStore, logger *zap.Logger, m *metrics.Metrics) *HeightProcessor {
	return &HeightProcessor{
		devices:  devices,
		controls: controls,
		logger:   logger,
		metrics:  m,
	}
}

func (p *HeightProcessor) Process(ctx context.Context, d *models.DeviceConfig, reading float64, _ map[string]any) error {
	var errs []error
	current := d.DimensionDefault - reading + d.OffsetMeter
	// the cycle closes on the peak tracked before this reading
	prevMax := d.DimensionMax

	if current > d.DimensionMax {
		p.logger.Info("New peak height",
			zap.Int64("device_id", d.ID),
			zap.Float64("current", current),
			zap.Float64("previous", d.DimensionMax),
		)
		d.DimensionMax = current
		if err := p.devices.UpdateDimensionMax(ctx, d.ID, current); err != nil {
			errs = append(errs, err)
		}
	}

	// linked devices only take values above their own dimension and only while tracking a box
	n, err := p.devices.PropagateDimension(ctx, d.ID, current)
	if err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		p.logger.Debug("Dimension propagated",
			zap.Int64("device_id", d.ID),
			zap.Float64("dimension", current),
			zap.Int64("devices", n),
		)
	}

	if reading+d.OffsetMeter > d.DimensionDefault-d.DimensionVariation &&
		prevMax > d.OffsetMeter+d.DimensionVariation {
		peak := prevMax
		if err := p.controls.InsertControlHeight(ctx, &models.ControlHeightRecord{DeviceID: d.ID, HeightValue: peak}); err != nil {
			errs = append(errs, err)
		}
		d.DimensionMax = 0
		if err := p.devices.UpdateDimensionMax(ctx, d.ID, 0); err != nil {
			errs = append(errs, err)
		}

		p.metrics.HeightCycle(strconv.FormatInt(d.ID, 10))
		p.logger.Info("Height cycle finished",
			zap.Int64("device_id", d.ID),
			zap.Float64("height", peak),
		)
	}

	return errors.Join(errs...)
}
