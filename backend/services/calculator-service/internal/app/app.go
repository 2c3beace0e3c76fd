package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "gulfsolar/backend/libs/db"
	"gulfsolar/backend/libs/metrics"
	libredis "gulfsolar/backend/libs/redis"
	"gulfsolar/backend/services/calculator-service/internal/config"
	httpserver "gulfsolar/backend/services/calculator-service/internal/http"
	"gulfsolar/backend/services/calculator-service/internal/http/handlers"
	"gulfsolar/backend/services/calculator-service/internal/http/middleware"
	"gulfsolar/backend/services/calculator-service/internal/leads"
	"gulfsolar/backend/services/calculator-service/internal/password"
	redisstore "gulfsolar/backend/services/calculator-service/internal/redis"
	"gulfsolar/backend/services/calculator-service/internal/repository"
	"gulfsolar/backend/services/calculator-service/internal/service"
	"gulfsolar/backend/services/calculator-service/internal/ws"
	"gulfsolar/backend/services/calculator-service/migrations"
)

const shutdownTimeout = 15 * time.Second

// App wires calculator-service dependencies.
type App struct {
	server      *httpserver.Server
	dispatcher  *leads.Dispatcher
	sessions    *ws.Manager
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  mqtt.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a := &App{db: sqlDB, logger: logger}

	if cfg.Database.Migrate {
		applied, err := libdb.Migrate(ctx, sqlDB, migrations.Files)
		if err != nil {
			a.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", zap.Strings("files", applied))
		}
	}

	redisClient, err := libredis.NewClient(libredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	switch {
	case errors.Is(err, libredis.ErrDisabled):
		logger.Info("redis not configured, running without settings cache and lead rate limit")
	case err != nil:
		a.Close()
		return nil, err
	default:
		a.redisClient = redisClient
	}

	adminRepo := repository.NewAdminRepository(sqlDB)
	settingsRepo := repository.NewSettingsRepository(sqlDB)
	leadRepo := repository.NewLeadRepository(sqlDB)

	var (
		settingsCache service.SettingsCache
		limiter       handlers.RateLimiter
	)
	if a.redisClient != nil {
		settingsCache = redisstore.NewSettingsCache(a.redisClient, cfg.SettingsTTL())
		if cfg.Leads.RateLimitPerMinute > 0 {
			limiter = redisstore.NewRateLimiter(a.redisClient, "gulfsolar:leads", cfg.Leads.RateLimitPerMinute, time.Minute)
		}
	}

	tokenService := service.NewTokenService(cfg.JWT.Secret, cfg.JWTExpiration())
	authService := service.NewAuthService(adminRepo, password.NewBcryptHasher(0), tokenService, logger)
	settingsService := service.NewSettingsService(settingsRepo, settingsCache, logger)
	calculatorService := service.NewCalculatorService(settingsService)

	sink, err := a.buildSinks(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dispatcher = leads.NewDispatcher(sink, leadRepo, logger, leads.DispatcherConfig{
		Workers:   cfg.Leads.Workers,
		QueueSize: cfg.Leads.QueueSize,
		Timeout:   cfg.DeliveryTimeout(),
	})
	leadService := service.NewLeadService(leadRepo, calculatorService, a.dispatcher, logger)

	a.sessions = ws.NewManager()
	wsServer := ws.NewServer(a.sessions, calculatorService, leadService, ws.Config{
		PingInterval: cfg.PingInterval(),
	}, logger, ws.WithRateLimiter(limiter))

	routes := httpserver.Routes{
		Health:           handlers.NewHealthHandler(),
		Metrics:          metrics.Handler(),
		PublicSettings:   handlers.NewPublicSettingsHandler(calculatorService, logger),
		Estimate:         handlers.NewEstimateHandler(calculatorService, logger),
		EstimatePDF:      handlers.NewEstimatePDFHandler(calculatorService, logger),
		EstimateWS:       wsServer.HandleWS,
		Leads:            handlers.NewLeadHandler(leadService, limiter, logger),
		AdminLogin:       handlers.NewAdminLoginHandler(authService, logger),
		AdminSettings:    handlers.NewAdminSettingsHandler(settingsService, logger),
		AdminLeads:       handlers.NewAdminLeadsHandler(leadService, logger),
		AdminLeadsExport: handlers.NewAdminLeadsExportHandler(leadService, logger),
	}

	router := httpserver.NewRouter(routes, middleware.AdminAuth(tokenService))
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger,
		middleware.Recovery(logger),
		middleware.Logging(logger),
	)
	a.server.RegisterOnShutdown(a.sessions.CloseAll)

	return a, nil
}

// buildSinks assembles lead delivery: the log sink always, webhook and MQTT when configured.
func (a *App) buildSinks(cfg *config.Config) (leads.Sink, error) {
	sinks := []leads.Sink{leads.NewLogSink(a.logger)}

	if cfg.Leads.WebhookURL != "" {
		webhook, err := leads.NewWebhookSink(cfg.Leads.WebhookURL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, webhook)
	}

	if cfg.MQTT.Broker != "" {
		client, err := leads.NewMQTTClient(leads.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.mqttClient = client
		mqttSink, err := leads.NewMQTTSink(client, cfg.MQTT.Topic)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mqttSink)
	}

	multi := leads.NewMultiSink(sinks...)
	a.logger.Info("lead sinks configured", zap.Strings("sinks", multi.Sinks()))
	return multi, nil
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close drains queued lead deliveries and releases resources.
func (a *App) Close() {
	if a.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.dispatcher.Close(ctx); err != nil {
			a.logger.Warn("lead dispatcher did not drain", zap.Error(err))
		}
		cancel()
	}
	if a.mqttClient != nil {
		a.mqttClient.Disconnect(250)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
