package models

import (
	"time"

	"gulfsolar/backend/services/calculator-service/internal/estimator"
)

// LeadStatus tracks hand-off to the configured sinks.
type LeadStatus string

const (
	LeadPending LeadStatus = "pending"
	LeadSent    LeadStatus = "sent"
	LeadFailed  LeadStatus = "failed"
)

// Lead is a visitor who asked for the full breakdown of an estimate.
type Lead struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	Inputs      estimator.Input  `json:"inputs"`
	Outputs     estimator.Output `json:"outputs"`
	Currency    string           `json:"currency"`
	Status      LeadStatus       `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	DeliveredAt *time.Time       `json:"deliveredAt,omitempty"`
}
