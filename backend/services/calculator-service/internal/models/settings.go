package models

import (
	"time"

	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// StoredSettings is the current settings row with its revision metadata.
// Version 0 means nothing has been stored yet and Settings holds the defaults.
type StoredSettings struct {
	Settings  settings.Settings `json:"settings"`
	Version   int64             `json:"version"`
	UpdatedBy *int64            `json:"updatedBy,omitempty"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
}
