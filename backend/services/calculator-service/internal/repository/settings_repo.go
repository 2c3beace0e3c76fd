package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	libdb "gulfsolar/backend/libs/db"
	"gulfsolar/backend/services/calculator-service/internal/models"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// AnyVersion skips the optimistic version check on Save.
const AnyVersion int64 = -1

var (
	// ErrSettingsNotFound means no settings were ever stored.
	ErrSettingsNotFound = errors.New("settings not found")
	// ErrVersionConflict means the row changed since the caller read it.
	ErrVersionConflict = errors.New("settings version conflict")
)

// SettingsRepository persists the single current settings row and its history.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository returns repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored settings.
func (r *SettingsRepository) Get(ctx context.Context) (*models.StoredSettings, error) {
	const query = `
		SELECT payload, version, updated_by, updated_at
		FROM calculator_settings
		WHERE id = 1
	`
	var (
		payload   []byte
		stored    models.StoredSettings
		updatedBy sql.NullInt64
		updatedAt time.Time
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&payload, &stored.Version, &updatedBy, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &stored.Settings); err != nil {
		return nil, fmt.Errorf("settings: decode payload: %w", err)
	}
	if updatedBy.Valid {
		id := updatedBy.Int64
		stored.UpdatedBy = &id
	}
	stored.UpdatedAt = &updatedAt
	return &stored, nil
}

// Save replaces the current settings inside one transaction and appends a history row.
// expectedVersion must match the stored version (0 when nothing is stored) unless it is
// AnyVersion. It returns the new version.
func (r *SettingsRepository) Save(ctx context.Context, s settings.Settings, updatedBy int64, expectedVersion int64) (int64, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("settings: encode payload: %w", err)
	}
	author := sql.NullInt64{Int64: updatedBy, Valid: updatedBy > 0}

	var newVersion int64
	err = libdb.InTx(ctx, r.db, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM calculator_settings WHERE id = 1 FOR UPDATE`).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if expectedVersion != AnyVersion && expectedVersion != current {
			return ErrVersionConflict
		}

		query, args := settingsUpsert(string(payload), author, current, expectedVersion)
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&newVersion); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrVersionConflict
			}
			return err
		}

		const history = `
			INSERT INTO calculator_settings_history (version, payload, updated_by)
			VALUES ($1, $2, $3)
		`
		_, err = tx.ExecContext(ctx, history, newVersion, string(payload), author)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

const (
	upsertSettingsPrefix = `
		INSERT INTO calculator_settings (id, payload, version, updated_by, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW(),
	`
	// A first save has no row to lock, so a concurrent first insert can win the race.
	// The checked form then reports a conflict; the unchecked form bumps whatever
	// version it finds.
	upsertSettingsChecked = upsertSettingsPrefix + `
			version = EXCLUDED.version
		WHERE calculator_settings.version = $4
		RETURNING version
	`
	upsertSettingsUnchecked = upsertSettingsPrefix + `
			version = calculator_settings.version + 1
		RETURNING version
	`
)

func settingsUpsert(payload string, author sql.NullInt64, current, expectedVersion int64) (string, []any) {
	if expectedVersion == AnyVersion {
		return upsertSettingsUnchecked, []any{payload, current + 1, author}
	}
	return upsertSettingsChecked, []any{payload, current + 1, author, current}
}
