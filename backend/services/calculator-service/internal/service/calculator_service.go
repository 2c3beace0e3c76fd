package service

import (
	"context"
	"errors"

	"gulfsolar/backend/libs/metrics"
	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// SettingsProvider returns the settings an estimate should use.
type SettingsProvider interface {
	Current(ctx context.Context) (settings.Settings, error)
}

// Estimate is a computed estimate together with the settings that produced it.
type Estimate struct {
	Settings settings.Settings
	Input    estimator.Input
	Output   estimator.Output
}

// CalculatorService runs the estimator against the current settings.
type CalculatorService struct {
	settings SettingsProvider
}

// NewCalculatorService builds service.
func NewCalculatorService(provider SettingsProvider) *CalculatorService {
	return &CalculatorService{settings: provider}
}

// Settings returns the current settings.
func (s *CalculatorService) Settings(ctx context.Context) (settings.Settings, error) {
	return s.settings.Current(ctx)
}

// Estimate computes an estimate. It returns estimator.ErrNotEstimable for unusable bills.
func (s *CalculatorService) Estimate(ctx context.Context, in estimator.Input) (*Estimate, error) {
	current, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	out, err := estimator.Estimate(current.Params, in)
	if err != nil {
		if errors.Is(err, estimator.ErrNotEstimable) {
			metrics.ObserveEstimate(metrics.ResultNotEstimable)
		}
		return nil, err
	}
	metrics.ObserveEstimate(metrics.ResultEstimated)
	return &Estimate{Settings: current, Input: in, Output: out}, nil
}
