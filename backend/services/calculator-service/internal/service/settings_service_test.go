package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gulfsolar/backend/services/calculator-service/internal/models"
	"gulfsolar/backend/services/calculator-service/internal/repository"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

func TestSettingsServiceFallsBackToDefaults(t *testing.T) {
	svc := NewSettingsService(&fakeSettingsRepo{}, nil, zap.NewNop())

	stored, err := svc.Stored(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version)
	assert.Equal(t, settings.Defaults(), stored.Settings)
}

func TestSettingsServiceServesDefaultsForInvalidStoredRecord(t *testing.T) {
	bad := settings.Defaults()
	bad.RatePerKwh = 0
	repo := &fakeSettingsRepo{stored: &models.StoredSettings{Settings: bad, Version: 4}}
	svc := NewSettingsService(repo, nil, zap.NewNop())

	stored, err := svc.Stored(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.Version)
	assert.Equal(t, settings.Defaults().Params, stored.Settings.Params)
}

func TestSettingsServicePropagatesRepositoryErrors(t *testing.T) {
	boom := errors.New("db down")
	svc := NewSettingsService(&fakeSettingsRepo{getErr: boom}, nil, zap.NewNop())

	_, err := svc.Current(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSettingsServiceReadThroughCache(t *testing.T) {
	repo := &fakeSettingsRepo{}
	cache := &fakeSettingsCache{}
	svc := NewSettingsService(repo, cache, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	repo.getErr = errors.New("must not be called")
	_, err = svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.gets)
}

func TestSettingsServiceCacheErrorsDoNotFailReads(t *testing.T) {
	cache := &fakeSettingsCache{getErr: errors.New("redis timeout")}
	svc := NewSettingsService(&fakeSettingsRepo{}, cache, zap.NewNop())

	s, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), s)
}

func TestSettingsServiceUpdate(t *testing.T) {
	repo := &fakeSettingsRepo{}
	cache := &fakeSettingsCache{}
	svc := NewSettingsService(repo, cache, zap.NewNop())
	ctx := context.Background()

	next := settings.Defaults()
	next.RatePerKwh = 0.41
	next.Currency = " nzd "
	next.Assumptions = []string{"one", "  "}

	version, err := svc.Update(ctx, 3, 0, next)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, 1, cache.invalidated)
	assert.Equal(t, []int64{3}, repo.authors)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.41, current.RatePerKwh, 1e-12)
	assert.Equal(t, "NZD", current.Currency)
	assert.Equal(t, []string{"one"}, current.Assumptions)

	_, err = svc.Update(ctx, 3, 0, next)
	require.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestSettingsServiceUpdateRejectsWholeRecord(t *testing.T) {
	repo := &fakeSettingsRepo{}
	svc := NewSettingsService(repo, nil, zap.NewNop())

	next := settings.Defaults()
	next.RangeBuffer = 1.5

	_, err := svc.Update(context.Background(), 1, 0, next)
	var verr *settings.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"rangeBuffer"}, verr.FieldNames())
	assert.Zero(t, repo.saves)
}
