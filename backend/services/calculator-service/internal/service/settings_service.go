package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gulfsolar/backend/libs/metrics"
	"gulfsolar/backend/services/calculator-service/internal/models"
	redisstore "gulfsolar/backend/services/calculator-service/internal/redis"
	"gulfsolar/backend/services/calculator-service/internal/repository"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// SettingsRepository is the durable settings store.
type SettingsRepository interface {
	Get(ctx context.Context) (*models.StoredSettings, error)
	Save(ctx context.Context, s settings.Settings, updatedBy int64, expectedVersion int64) (int64, error)
}

// SettingsCache is an optional read-through cache in front of the repository.
type SettingsCache interface {
	Get(ctx context.Context) (*models.StoredSettings, error)
	Set(ctx context.Context, stored *models.StoredSettings) error
	Invalidate(ctx context.Context) error
}

// SettingsService serves the current calculator settings with a defaults fallback.
type SettingsService struct {
	repo   SettingsRepository
	cache  SettingsCache
	logger *zap.Logger
}

// NewSettingsService builds the service. cache may be nil.
func NewSettingsService(repo SettingsRepository, cache SettingsCache, logger *zap.Logger) *SettingsService {
	return &SettingsService{repo: repo, cache: cache, logger: logger}
}

// Current returns the settings every estimate should use.
func (s *SettingsService) Current(ctx context.Context) (settings.Settings, error) {
	stored, err := s.Stored(ctx)
	if err != nil {
		return settings.Settings{}, err
	}
	return stored.Settings, nil
}

// Stored returns the current settings with revision metadata. When nothing has been
// saved yet, or the stored record no longer validates, it returns the defaults at
// version 0 (or the stored version for an invalid record).
func (s *SettingsService) Stored(ctx context.Context) (*models.StoredSettings, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		switch {
		case err == nil:
			metrics.ObserveSettingsCache("hit")
			return cached, nil
		case errors.Is(err, redisstore.ErrCacheMiss):
			metrics.ObserveSettingsCache("miss")
		default:
			metrics.ObserveSettingsCache("error")
			s.logger.Warn("settings cache read failed", zap.Error(err))
		}
	}

	stored, err := s.repo.Get(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingsNotFound) {
			return nil, err
		}
		stored = &models.StoredSettings{Settings: settings.Defaults()}
	} else if verr := stored.Settings.Validate(); verr != nil {
		s.logger.Error("stored settings are invalid, serving defaults",
			zap.Int64("version", stored.Version), zap.Error(verr))
		stored = &models.StoredSettings{Settings: settings.Defaults(), Version: stored.Version}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stored); err != nil {
			s.logger.Warn("settings cache write failed", zap.Error(err))
		}
	}
	return stored, nil
}

// Update validates and stores new settings. The whole record is rejected on any invalid
// field. expectedVersion guards against overwriting a concurrent edit.
func (s *SettingsService) Update(ctx context.Context, adminID int64, expectedVersion int64, next settings.Settings) (int64, error) {
	next.Normalize()
	if err := next.Validate(); err != nil {
		return 0, err
	}

	version, err := s.repo.Save(ctx, next, adminID, expectedVersion)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("settings cache invalidate failed", zap.Error(err))
		}
	}

	s.logger.Info("calculator settings updated",
		zap.Int64("admin_id", adminID),
		zap.Int64("version", version),
		zap.Float64("rate_per_kwh", next.RatePerKwh),
		zap.Float64("range_buffer", next.RangeBuffer),
	)
	return version, nil
}
