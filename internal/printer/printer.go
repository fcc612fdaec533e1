package printer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"
	"sensorica-ingest/internal/repository"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PrinterStore resolves printers by id
type PrinterStore interface {
	GetPrinter(ctx context.Context, id int64) (*models.Printer, error)
}

// LabelPrinter prints the label of a completed box on the line's printer
type LabelPrinter struct {
	store    PrinterStore
	renderer Renderer
	spooler  Spooler
	remote   *resty.Client
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New creates the label printer
func New(store PrinterStore, renderer Renderer, spooler Spooler, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *LabelPrinter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LabelPrinter{
		store:    store,
		renderer: renderer,
		spooler:  spooler,
		remote: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		logger:  logger,
		metrics: m,
	}
}

// Print sends labelID to the device's printer. A device without a printer,
// or whose printer no longer exists, is a no-op.
func (p *LabelPrinter) Print(ctx context.Context, device *models.DeviceConfig, labelID string) error {
	if !device.HasPrinter() {
		return nil
	}

	printer, err := p.store.GetPrinter(ctx, *device.PrinterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			p.logger.Debug("Printer not found, label skipped",
				zap.Int64("device_id", device.ID),
				zap.Int64("printer_id", *device.PrinterID),
			)
			return nil
		}
		return fmt.Errorf("failed to load printer: %w", err)
	}

	if printer.Type == models.PrinterLocal {
		err = p.printLocal(ctx, printer, labelID)
		p.metrics.Label("local", err)
	} else {
		err = p.printRemote(ctx, printer, labelID)
		p.metrics.Label("remote", err)
	}
	if err != nil {
		return err
	}

	p.logger.Info("Label printed",
		zap.Int64("device_id", device.ID),
		zap.String("printer", printer.Name),
		zap.String("barcode", labelID),
	)
	return nil
}

func (p *LabelPrinter) printLocal(ctx context.Context, printer *models.Printer, labelID string) error {
	doc, err := p.renderer.Render(labelID)
	if err != nil {
		return err
	}
	if err := p.spooler.Submit(ctx, printer.Name, base64.StdEncoding.EncodeToString(doc)); err != nil {
		return fmt.Errorf("failed to submit label to %s: %w", printer.Name, err)
	}
	return nil
}

func (p *LabelPrinter) printRemote(ctx context.Context, printer *models.Printer, labelID string) error {
	resp, err := p.remote.R().
		SetContext(ctx).
		SetBody(map[string]string{"barcode": labelID}).
		Post(printer.APIEndpoint)
	if err != nil {
		return fmt.Errorf("failed to call print api %s: %w", printer.APIEndpoint, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("print api %s returned %d: %s", printer.APIEndpoint, resp.StatusCode(), resp.String())
	}
	return nil
}
