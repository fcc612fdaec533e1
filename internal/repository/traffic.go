package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sensorica-ingest/internal/models"

	"go.uber.org/zap"
)

// TrafficRepository live traffic monitor events
type TrafficRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTrafficRepository creates the traffic event repository
func NewTrafficRepository(db *sql.DB, logger *zap.Logger) *TrafficRepository {
	return &TrafficRepository{
		db:     db,
		logger: logger,
	}
}

// LatestTrafficEvent returns the most recent event of the device, ErrNotFound if none
func (r *TrafficRepository) LatestTrafficEvent(ctx context.Context, deviceID int64) (*models.TrafficEvent, error) {
	query := `
		SELECT id, modbus_id, value, created_at
		FROM live_traffic_monitors
		WHERE modbus_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	ev := &models.TrafficEvent{}
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&ev.ID, &ev.DeviceID, &ev.Value, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query latest traffic event: %w", err)
	}
	return ev, nil
}

// InsertTrafficEvent appends a new state
func (r *TrafficRepository) InsertTrafficEvent(ctx context.Context, deviceID int64, value float64) error {
	query := `
		INSERT INTO live_traffic_monitors (modbus_id, value, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
	`
	if _, err := r.db.ExecContext(ctx, query, deviceID, value); err != nil {
		return fmt.Errorf("failed to insert traffic event: %w", err)
	}
	return nil
}
