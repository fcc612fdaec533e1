package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sensorica-ingest/internal/models"

	"go.uber.org/zap"
)

// ErrNotFound returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// DeviceRepository device registry backed by the modbuses table
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository creates the device registry
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

const deviceColumns = `
		m.id,
		COALESCE(m.name, ''),
		COALESCE(m.mqtt_topic_modbus, ''),
		COALESCE(m.mqtt_topic, ''),
		COALESCE(m.model_name, ''),
		COALESCE(m.json_api, ''),
		COALESCE(m.calibration_type, '0'),
		COALESCE(m.conversion_factor, 1),
		COALESCE(m.tara, 0),
		COALESCE(m.tara_calibrate, 0),
		COALESCE(m.min_kg, 0),
		COALESCE(m.variacion_number, 0),
		COALESCE(m.rep_number, 0),
		COALESCE(m.last_value, 0),
		COALESCE(m.last_kg, 0),
		COALESCE(m.last_rep, 0),
		COALESCE(m.max_kg, 0),
		COALESCE(m.rec_box, 0),
		COALESCE(m.rec_box_shift, 0),
		COALESCE(m.rec_box_unlimited, 0),
		COALESCE(m.total_kg_order, 0),
		COALESCE(m.total_kg_shift, 0),
		COALESCE(m.dimension_default, 0),
		COALESCE(m.dimension_max, 0),
		COALESCE(m.dimension_variacion, 0),
		COALESCE(m.offset_meter, 0),
		COALESCE(m.dimension, 0),
		m.dimension_id,
		m.printer_id`

func scanDevice(row interface{ Scan(dest ...interface{}) error }) (*models.DeviceConfig, error) {
	d := &models.DeviceConfig{}
	var jsonAPI string
	var dimensionID, printerID sql.NullInt64

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Topic,
		&d.BaseTopic,
		&d.ModelName,
		&jsonAPI,
		&d.CalibrationType,
		&d.ConversionFactor,
		&d.Tare,
		&d.TareCalibrate,
		&d.MinKg,
		&d.VariationNumber,
		&d.RepNumber,
		&d.LastValue,
		&d.LastKg,
		&d.LastRep,
		&d.MaxKg,
		&d.RecBox,
		&d.RecBoxShift,
		&d.RecBoxUnlimited,
		&d.TotalKgOrder,
		&d.TotalKgShift,
		&d.DimensionDefault,
		&d.DimensionMax,
		&d.DimensionVariation,
		&d.OffsetMeter,
		&d.Dimension,
		&dimensionID,
		&printerID,
	)
	if err != nil {
		return nil, err
	}

	d.Kind = models.ParseModelKind(d.ModelName)
	d.JSONPath = models.ParseJSONPath(jsonAPI)
	if dimensionID.Valid {
		d.DimensionID = &dimensionID.Int64
	}
	if printerID.Valid {
		d.PrinterID = &printerID.Int64
	}
	return d, nil
}

// ListTopics returns every distinct non-empty subscription topic
func (r *DeviceRepository) ListTopics(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT mqtt_topic_modbus
		FROM modbuses
		WHERE mqtt_topic_modbus IS NOT NULL
		  AND mqtt_topic_modbus <> ''
		ORDER BY mqtt_topic_modbus
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate topics: %w", err)
	}
	return topics, nil
}

// GetByTopic loads the device subscribed on topic
func (r *DeviceRepository) GetByTopic(ctx context.Context, topic string) (*models.DeviceConfig, error) {
	query := `SELECT ` + deviceColumns + `
		FROM modbuses m
		WHERE m.mqtt_topic_modbus = $1
		ORDER BY m.id
		LIMIT 1
	`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, topic))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device for topic %s: %w", topic, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return d, nil
}

// UpdateLastValue stores the latest calibrated reading
func (r *DeviceRepository) UpdateLastValue(ctx context.Context, id int64, value float64) error {
	query := `UPDATE modbuses SET last_value = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, value); err != nil {
		return fmt.Errorf("failed to update last_value: %w", err)
	}
	return nil
}

// SaveWeightState persists counters and peak tracking fields of a weight device
func (r *DeviceRepository) SaveWeightState(ctx context.Context, d *models.DeviceConfig) error {
	query := `
		UPDATE modbuses SET
			rec_box = $2,
			rec_box_shift = $3,
			rec_box_unlimited = $4,
			max_kg = $5,
			last_kg = $6,
			last_rep = $7,
			dimension = $8,
			total_kg_order = $9,
			total_kg_shift = $10,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.RecBox,
		d.RecBoxShift,
		d.RecBoxUnlimited,
		d.MaxKg,
		d.LastKg,
		d.LastRep,
		d.Dimension,
		d.TotalKgOrder,
		d.TotalKgShift,
	)
	if err != nil {
		return fmt.Errorf("failed to save weight state: %w", err)
	}
	return nil
}

// UpdateDimensionMax stores the running height peak
func (r *DeviceRepository) UpdateDimensionMax(ctx context.Context, id int64, value float64) error {
	query := `UPDATE modbuses SET dimension_max = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, value); err != nil {
		return fmt.Errorf("failed to update dimension_max: %w", err)
	}
	return nil
}

// PropagateDimension copies a height reading to the weight devices linked to
// sourceID whose current dimension is smaller and that are tracking a box.
func (r *DeviceRepository) PropagateDimension(ctx context.Context, sourceID int64, value float64) (int64, error) {
	query := `
		UPDATE modbuses SET dimension = $2, updated_at = NOW()
		WHERE dimension_id = $1
		  AND id <> $1
		  AND COALESCE(dimension, 0) < $2
		  AND COALESCE(max_kg, 0) <> 0
	`
	res, err := r.db.ExecContext(ctx, query, sourceID, value)
	if err != nil {
		return 0, fmt.Errorf("failed to propagate dimension: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read propagated dimension count: %w", err)
	}
	return n, nil
}
