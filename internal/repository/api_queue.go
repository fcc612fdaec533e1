package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sensorica-ingest/internal/models"

	"go.uber.org/zap"
)

// APIQueueRepository pending callback requests (api_queue_prints)
type APIQueueRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAPIQueueRepository creates the callback queue repository
func NewAPIQueueRepository(db *sql.DB, logger *zap.Logger) *APIQueueRepository {
	return &APIQueueRepository{
		db:     db,
		logger: logger,
	}
}

// OldestUnused returns the oldest request not yet used for the device, ErrNotFound if none
func (r *APIQueueRepository) OldestUnused(ctx context.Context, deviceID int64) (*models.APICallbackRequest, error) {
	query := `
		SELECT id, modbus_id, COALESCE(url_back, ''), COALESCE(token_back, ''), COALESCE(value, 0), used, created_at
		FROM api_queue_prints
		WHERE modbus_id = $1 AND used = FALSE
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	req := &models.APICallbackRequest{}
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&req.ID,
		&req.DeviceID,
		&req.URL,
		&req.Token,
		&req.Value,
		&req.Used,
		&req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query api queue: %w", err)
	}
	return req, nil
}

// MarkUsed flags the request as consumed; a request already used stays untouched
func (r *APIQueueRepository) MarkUsed(ctx context.Context, id int64) error {
	query := `UPDATE api_queue_prints SET used = TRUE, updated_at = NOW() WHERE id = $1 AND used = FALSE`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark api queue %d used: %w", id, err)
	}
	return nil
}
