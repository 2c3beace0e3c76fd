package service

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"gulfsolar/backend/libs/metrics"
	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/models"
)

const maxLeadListLimit = 500

// LeadRepository defines lead storage used by the service.
type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	UpdateStatus(ctx context.Context, id string, status models.LeadStatus, at time.Time) error
	List(ctx context.Context, limit int) ([]models.Lead, error)
}

// LeadDispatcher hands a stored lead to background delivery.
type LeadDispatcher interface {
	Enqueue(lead models.Lead) error
}

// LeadService captures leads and hands them off without waiting for delivery.
type LeadService struct {
	repo       LeadRepository
	calculator *CalculatorService
	dispatcher LeadDispatcher
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewLeadService builds service.
func NewLeadService(repo LeadRepository, calculator *CalculatorService, dispatcher LeadDispatcher, logger *zap.Logger) *LeadService {
	return &LeadService{
		repo:       repo,
		calculator: calculator,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return ulid.Make().String() },
	}
}

// Capture recomputes the estimate server-side, stores the lead as pending and queues it
// for delivery. Client-computed outputs are never trusted. It returns ErrInvalidEmail or
// estimator.ErrNotEstimable for bad submissions.
func (s *LeadService) Capture(ctx context.Context, email string, in estimator.Input) (*models.Lead, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	est, err := s.calculator.Estimate(ctx, in)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		ID:        s.newID(),
		Email:     email,
		Inputs:    in,
		Outputs:   est.Output,
		Currency:  est.Settings.Currency,
		Status:    models.LeadPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, err
	}
	metrics.ObserveLeadCaptured()
	s.logger.Info("lead captured",
		zap.String("lead_id", lead.ID),
		zap.Float64("monthly_bill", in.MonthlyBill),
		zap.String("roof_type", string(in.RoofType)),
	)

	if err := s.dispatcher.Enqueue(*lead); err != nil {
		metrics.ObserveLeadDropped()
		s.logger.Warn("lead not queued for delivery", zap.String("lead_id", lead.ID), zap.Error(err))
		if uerr := s.repo.UpdateStatus(ctx, lead.ID, models.LeadFailed, s.now().UTC()); uerr != nil {
			s.logger.Error("failed to mark lead failed", zap.String("lead_id", lead.ID), zap.Error(uerr))
		}
		lead.Status = models.LeadFailed
	}
	return lead, nil
}

// SubmitLead adapts Capture for the live calculator form.
func (s *LeadService) SubmitLead(ctx context.Context, email string, in estimator.Input) error {
	_, err := s.Capture(ctx, email, in)
	return err
}

// List returns recent leads, newest first.
func (s *LeadService) List(ctx context.Context, limit int) ([]models.Lead, error) {
	if limit > maxLeadListLimit {
		limit = maxLeadListLimit
	}
	return s.repo.List(ctx, limit)
}
