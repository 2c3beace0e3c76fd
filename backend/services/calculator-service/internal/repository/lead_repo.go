package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gulfsolar/backend/services/calculator-service/internal/models"
)

// ErrLeadNotFound indicates a missing lead id.
var ErrLeadNotFound = errors.New("lead not found")

const defaultLeadLimit = 50

// LeadRepository persists captured leads.
type LeadRepository struct {
	db *sql.DB
}

// NewLeadRepository returns repository.
func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create stores a new lead.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	inputs, err := json.Marshal(lead.Inputs)
	if err != nil {
		return fmt.Errorf("lead: encode inputs: %w", err)
	}
	outputs, err := json.Marshal(lead.Outputs)
	if err != nil {
		return fmt.Errorf("lead: encode outputs: %w", err)
	}
	const query = `
		INSERT INTO leads (id, email, inputs, outputs, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		lead.ID,
		lead.Email,
		string(inputs),
		string(outputs),
		lead.Currency,
		string(lead.Status),
		lead.CreatedAt,
	)
	return err
}

// UpdateStatus records the delivery outcome.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id string, status models.LeadStatus, at time.Time) error {
	const query = `
		UPDATE leads
		SET status = $2,
		    delivered_at = $3
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, string(status), at)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// List returns the newest leads first.
func (r *LeadRepository) List(ctx context.Context, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = defaultLeadLimit
	}
	const query = `
		SELECT id, email, inputs, outputs, currency, status, created_at, delivered_at
		FROM leads
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var (
			l           models.Lead
			inputs      []byte
			outputs     []byte
			status      string
			deliveredAt sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.Email, &inputs, &outputs, &l.Currency, &status, &l.CreatedAt, &deliveredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(inputs, &l.Inputs); err != nil {
			return nil, fmt.Errorf("lead %s: decode inputs: %w", l.ID, err)
		}
		if err := json.Unmarshal(outputs, &l.Outputs); err != nil {
			return nil, fmt.Errorf("lead %s: decode outputs: %w", l.ID, err)
		}
		l.Status = models.LeadStatus(status)
		if deliveredAt.Valid {
			t := deliveredAt.Time
			l.DeliveredAt = &t
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leads, nil
}
