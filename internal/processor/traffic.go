package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"
	"sensorica-ingest/internal/repository"

	"go.uber.org/zap"
)

// TrafficProcessor stores presence/traffic readings that differ from the last stored one
type TrafficProcessor struct {
	traffic TrafficStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewTrafficProcessor creates the traffic monitor processor
func NewTrafficProcessor(traffic TrafficStore, logger *zap.Logger, m *metrics.Metrics) *TrafficProcessor {
	return &TrafficProcessor{
		traffic: traffic,
		logger:  logger,
		metrics: m,
	}
}

func (p *TrafficProcessor) Process(ctx context.Context, d *models.DeviceConfig, reading float64, _ map[string]any) error {
	last, err := p.traffic.LatestTrafficEvent(ctx, d.ID)
	switch {
	case err == nil && last.Value == reading:
		p.logger.Debug("Traffic value unchanged", zap.Int64("device_id", d.ID), zap.Float64("value", reading))
		return nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("failed to load last traffic event: %w", err)
	}

	if err := p.traffic.InsertTrafficEvent(ctx, d.ID, reading); err != nil {
		return err
	}
	p.metrics.TrafficEvent(strconv.FormatInt(d.ID, 10))
	p.logger.Info("Traffic value changed", zap.Int64("device_id", d.ID), zap.Float64("value", reading))
	return nil
}
