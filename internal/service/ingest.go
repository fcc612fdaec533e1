package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sensorica-ingest/common/database"
	mqttcommon "sensorica-ingest/common/mqtt"
	rediscommon "sensorica-ingest/common/redis"
	"sensorica-ingest/internal/config"
	"sensorica-ingest/internal/consumer"
	"sensorica-ingest/internal/dispatcher"
	"sensorica-ingest/internal/httpapi"
	"sensorica-ingest/internal/metrics"
	"sensorica-ingest/internal/models"
	"sensorica-ingest/internal/notifier"
	"sensorica-ingest/internal/outbox"
	"sensorica-ingest/internal/printer"
	"sensorica-ingest/internal/processor"
	"sensorica-ingest/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// IngestService wires the ingest loop and its collaborators
type IngestService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client
	publisher  *outbox.Publisher
	consumer   *consumer.MQTTConsumer
	reload     *consumer.ReloadListener
	http       *httpapi.Server
	done       chan struct{}
}

// NewIngestService connects to every backend and builds the pipeline
func NewIngestService(cfg *config.Config, logger *zap.Logger) (*IngestService, error) {
	s := &IngestService{
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := s.connect(); err != nil {
		s.release()
		return nil, err
	}
	if err := s.build(); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *IngestService) connect() error {
	cfg := s.config
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	if cfg.UsesRedis() {
		client, err := rediscommon.Connect(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redis = client
	}

	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, s.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	s.mqttClient = mqttClient
	return nil
}

func (s *IngestService) build() error {
	cfg := s.config
	m := metrics.New()

	deviceRepo := repository.NewDeviceRepository(s.db, s.logger)
	controlRepo := repository.NewControlRepository(s.db, s.logger)
	trafficRepo := repository.NewTrafficRepository(s.db, s.logger)
	queueRepo := repository.NewAPIQueueRepository(s.db, s.logger)
	printerRepo := repository.NewPrinterRepository(s.db, s.logger)

	backends := outbox.Backends{
		DB:           s.db,
		Redis:        s.redis,
		KafkaBrokers: cfg.Kafka.Brokers,
		Bus:          s.mqttClient,
		StreamMaxLen: cfg.Outbox.StreamMaxLen,
		QoS:          cfg.MQTT.QoS,
	}
	primary, err := outbox.Open(cfg.Outbox.Primary, backends)
	if err != nil {
		return fmt.Errorf("primary delivery log: %w", err)
	}
	var secondary outbox.DeliveryLog
	if cfg.Outbox.Secondary != "" {
		if secondary, err = outbox.Open(cfg.Outbox.Secondary, backends); err != nil {
			return fmt.Errorf("secondary delivery log: %w", err)
		}
	}
	s.publisher = outbox.NewPublisher(primary, secondary, s.logger, m)

	callbacks := notifier.New(notifier.Config{
		Method:  cfg.ExternalAPI.Method,
		Model:   cfg.ExternalAPI.Model,
		UseCurl: cfg.ExternalAPI.UseCurl,
		Timeout: cfg.ExternalAPI.Timeout,
	}, queueRepo, s.logger, m)

	labels := printer.New(
		printerRepo,
		printer.NewRenderer(cfg.Printer.LabelFormat),
		printer.NewCommandSpooler(cfg.Printer.SpoolCommand, cfg.Printer.Timeout),
		cfg.Printer.Timeout,
		s.logger,
		m,
	)

	disp := dispatcher.New(deviceRepo, s.logger, m)
	disp.Register(models.ModelWeight, processor.NewWeightProcessor(
		deviceRepo, controlRepo, queueRepo, s.publisher, callbacks, labels, s.logger, m,
	))
	disp.Register(models.ModelHeight, processor.NewHeightProcessor(deviceRepo, controlRepo, s.logger, m))
	disp.Register(models.ModelTrafficMonitor, processor.NewTrafficProcessor(trafficRepo, s.logger, m))

	s.consumer = consumer.NewMQTTConsumer(s.mqttClient, deviceRepo, disp.Dispatch, consumer.Options{
		QoS:          cfg.MQTT.QoS,
		LoopInterval: cfg.Ingest.LoopInterval,
		DrainWait:    cfg.Ingest.DrainWait,
		QueueSize:    cfg.Ingest.QueueSize,
	}, s.logger, m)
	s.mqttClient.OnReconnect(s.consumer.Resubscribe)

	if cfg.Ingest.ReloadChannel != "" {
		s.reload = consumer.NewReloadListener(s.redis, cfg.Ingest.ReloadChannel, s.consumer.NotifyConfigChanged, s.logger)
	}
	s.http = httpapi.New(cfg.HTTP.Addr, s.consumer, m.Registry(), s.logger)
	return nil
}

// Start runs the ingest loop until ctx is done
func (s *IngestService) Start(ctx context.Context) error {
	defer close(s.done)
	s.logger.Info("Starting ingest service components")

	go func() {
		if err := s.http.Start(); err != nil {
			s.logger.Error("Ops HTTP server failed", zap.Error(err))
		}
	}()

	if s.reload != nil {
		go func() {
			if err := s.reload.Run(ctx); err != nil {
				s.logger.Error("Reload listener stopped", zap.Error(err))
			}
		}()
	}

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}
	return nil
}

// Stop waits for the loop to finish its current message, then closes every connection
func (s *IngestService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ingest service")

	select {
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("Ingest loop did not stop in time")
	}

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("Error stopping ops HTTP server", zap.Error(err))
		}
	}
	s.release()

	s.logger.Info("Ingest service stopped")
	return nil
}

// release closes whatever connect/build managed to open
func (s *IngestService) release() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("Error closing delivery logs", zap.Error(err))
		}
	}
	if s.mqttClient != nil && s.mqttClient.IsConnected() {
		s.mqttClient.Disconnect()
	}
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}
	if s.db != nil {
		database.Close(s.db)
	}
}
