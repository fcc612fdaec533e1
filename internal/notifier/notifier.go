package notifier

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const formContentType = "application/x-www-form-urlencoded"

// Marker flags a callback request as consumed
type Marker interface {
	MarkUsed(ctx context.Context, id int64) error
}

// Config process-wide callback settings
type Config struct {
	Method  string // put | post
	Model   string // dataToSend | dataToSend2 | dataToSend3
	UseCurl bool   // raw form body, custom method, no TLS verification
	Timeout time.Duration
}

// Notifier calls the URL stored on a callback request once a box completes
type Notifier struct {
	cfg     Config
	client  *resty.Client
	marker  Marker
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates the notifier. No retries: a request is attempted once.
func New(cfg Config, marker Marker, logger *zap.Logger, m *metrics.Metrics) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.UseCurl {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Notifier{
		cfg:     cfg,
		client:  client,
		marker:  marker,
		logger:  logger,
		metrics: m,
	}
}

// Notify sends the completed box to req.URL, then marks req used whatever
// the outcome. Only a failure to mark is returned.
func (n *Notifier) Notify(ctx context.Context, req *models.APICallbackRequest, box *models.CompletedBox) error {
	n.call(ctx, req, box)

	if err := n.marker.MarkUsed(ctx, req.ID); err != nil {
		n.logger.Error("Failed to mark callback request used",
			zap.Int64("request_id", req.ID),
			zap.Int64("device_id", box.DeviceID),
			zap.Error(err),
		)
		return err
	}
	n.logger.Info("Callback request marked used",
		zap.Int64("request_id", req.ID),
		zap.Int64("device_id", box.DeviceID),
	)
	return nil
}

func (n *Notifier) call(ctx context.Context, req *models.APICallbackRequest, box *models.CompletedBox) {
	r := n.client.R().SetContext(ctx)
	method := n.method()

	switch {
	case n.cfg.UseCurl:
		method = strings.ToUpper(n.cfg.Method)
		if method == "" {
			method = http.MethodPut
		}
		r.SetHeader("Content-Type", formContentType).SetBody(FormPayload(req, box))
	case n.cfg.Model == ModelForm:
		r.SetHeader("Content-Type", formContentType).SetBody(FormPayload(req, box))
	case n.cfg.Model == ModelFlat:
		r.SetHeader("Content-Type", "application/json").SetBody(FlatPayload(req, box))
	default:
		r.SetHeader("Content-Type", "application/json").SetBody(NewStructuredPayload(req, box))
	}

	n.logger.Info("Calling external API",
		zap.Int64("device_id", box.DeviceID),
		zap.String("url", req.URL),
		zap.String("method", method),
		zap.String("model", n.cfg.Model),
		zap.Bool("curl", n.cfg.UseCurl),
	)

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		n.metrics.Callback("transport_error")
		n.logger.Error("External API call failed",
			zap.Int64("device_id", box.DeviceID),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return
	}

	if !resp.IsSuccess() {
		n.metrics.Callback("http_error")
		n.logger.Error("External API returned error",
			zap.Int64("device_id", box.DeviceID),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return
	}

	n.metrics.Callback("ok")
	n.logger.Info("External API response",
		zap.Int64("device_id", box.DeviceID),
		zap.Int("status_code", resp.StatusCode()),
		zap.String("body", resp.String()),
	)
}

// method is PUT unless post is configured
func (n *Notifier) method() string {
	if strings.EqualFold(n.cfg.Method, "post") {
		return http.MethodPost
	}
	return http.MethodPut
}
