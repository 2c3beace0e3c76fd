package leads

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gulfsolar/backend/libs/metrics"
	"gulfsolar/backend/services/calculator-service/internal/models"
)

// Sink hands a captured lead to something outside the service.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, lead models.Lead) error
}

// LogSink writes the lead to the service log. It is always enabled.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements Sink.
func (s *LogSink) Deliver(_ context.Context, lead models.Lead) error {
	s.logger.Info("lead ready for follow-up",
		zap.String("lead_id", lead.ID),
		zap.String("email", lead.Email),
		zap.Float64("monthly_bill", lead.Inputs.MonthlyBill),
		zap.String("roof_type", string(lead.Inputs.RoofType)),
		zap.Bool("home_during_day", lead.Inputs.HomeDuringDay),
		zap.Float64("annual_savings_low", lead.Outputs.AnnualSavings.Low),
		zap.Float64("annual_savings_high", lead.Outputs.AnnualSavings.High),
	)
	return nil
}

// MultiSink delivers to every configured sink concurrently.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink constructs a MultiSink, skipping nil sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name implements Sink.
func (m *MultiSink) Name() string { return "multi" }

// Sinks returns the names of the wrapped sinks.
func (m *MultiSink) Sinks() []string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Deliver runs every sink to completion. One failing sink does not cancel the others;
// the returned error joins all sink failures.
func (m *MultiSink) Deliver(ctx context.Context, lead models.Lead) error {
	errs := make([]error, len(m.sinks))
	var g errgroup.Group
	for i, sink := range m.sinks {
		g.Go(func() error {
			err := sink.Deliver(ctx, lead)
			if err != nil {
				metrics.ObserveLeadDelivery(sink.Name(), metrics.ResultError)
				errs[i] = fmt.Errorf("%s sink: %w", sink.Name(), err)
				return errs[i]
			}
			metrics.ObserveLeadDelivery(sink.Name(), metrics.ResultSuccess)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
