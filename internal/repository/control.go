package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sensorica-ingest/internal/models"

	"go.uber.org/zap"
)

// ControlRepository append-only box and height records
type ControlRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewControlRepository creates the control record repository
func NewControlRepository(db *sql.DB, logger *zap.Logger) *ControlRepository {
	return &ControlRepository{
		db:     db,
		logger: logger,
	}
}

// InsertControlWeight appends one completed box
func (r *ControlRepository) InsertControlWeight(ctx context.Context, rec *models.ControlWeightRecord) error {
	query := `
		INSERT INTO control_weights (
			modbus_id,
			last_control_weight,
			last_dimension,
			last_box_number,
			last_box_shift,
			last_barcoder,
			last_final_barcoder,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULL, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.DeviceID,
		rec.Weight,
		rec.Dimension,
		rec.BoxNumber,
		rec.BoxShift,
		rec.Barcode,
	)
	if err != nil {
		return fmt.Errorf("failed to insert control_weight: %w", err)
	}
	return nil
}

// InsertControlHeight appends one finished height cycle
func (r *ControlRepository) InsertControlHeight(ctx context.Context, rec *models.ControlHeightRecord) error {
	query := `
		INSERT INTO control_heights (modbus_id, height_value, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
	`
	if _, err := r.db.ExecContext(ctx, query, rec.DeviceID, rec.HeightValue); err != nil {
		return fmt.Errorf("failed to insert control_height: %w", err)
	}
	return nil
}
