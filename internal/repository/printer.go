package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sensorica-ingest/internal/models"

	"go.uber.org/zap"
)

// PrinterRepository label printers
type PrinterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPrinterRepository creates the printer repository
func NewPrinterRepository(db *sql.DB, logger *zap.Logger) *PrinterRepository {
	return &PrinterRepository{
		db:     db,
		logger: logger,
	}
}

// GetPrinter loads a printer, ErrNotFound if it does not exist
func (r *PrinterRepository) GetPrinter(ctx context.Context, id int64) (*models.Printer, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(type, 0), COALESCE(api_printer, '')
		FROM printers
		WHERE id = $1
	`

	p := &models.Printer{}
	var printerType int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &printerType, &p.APIEndpoint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query printer: %w", err)
	}
	p.Type = models.PrinterType(printerType)
	return p, nil
}
