package cli

import (
	"context"
	"errors"

	"go.uber.org/zap"

	libdb "gulfsolar/backend/libs/db"
	libredis "gulfsolar/backend/libs/redis"
	"gulfsolar/backend/services/calculator-service/internal/config"
	"gulfsolar/backend/services/calculator-service/internal/password"
	redisstore "gulfsolar/backend/services/calculator-service/internal/redis"
	"gulfsolar/backend/services/calculator-service/internal/repository"
	"gulfsolar/backend/services/calculator-service/internal/service"
	"gulfsolar/backend/services/calculator-service/migrations"
)

// OpenBackend connects with the service configuration. The settings cache is used
// when Redis is configured so an import invalidates what the service is serving.
func OpenBackend(logger *zap.Logger) BackendOpener {
	return func(ctx context.Context) (*Backend, error) {
		cfg, err := config.LoadDatabaseOnly()
		if err != nil {
			return nil, err
		}

		sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if _, err := libdb.Migrate(ctx, sqlDB, migrations.Files); err != nil {
				_ = sqlDB.Close()
				return nil, err
			}
		}

		closers := []func() error{sqlDB.Close}
		var cache service.SettingsCache
		redisClient, err := libredis.NewClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		switch {
		case errors.Is(err, libredis.ErrDisabled):
		case err != nil:
			logger.Warn("redis unavailable, settings cache will expire on its own", zap.Error(err))
		default:
			cache = redisstore.NewSettingsCache(redisClient, cfg.SettingsTTL())
			closers = append(closers, redisClient.Close)
		}

		tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWTExpiration())
		auth := service.NewAuthService(repository.NewAdminRepository(sqlDB), password.NewBcryptHasher(0), tokens, logger)
		settingsService := service.NewSettingsService(repository.NewSettingsRepository(sqlDB), cache, logger)

		return &Backend{
			Admins:   auth,
			Settings: settingsService,
			Closer: func() {
				for _, c := range closers {
					if err := c(); err != nil {
						logger.Warn("failed to close connection", zap.Error(err))
					}
				}
			},
		}, nil
	}
}
