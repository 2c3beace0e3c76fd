// Package cli implements calculatorctl, the operator command line.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"gulfsolar/backend/services/calculator-service/internal/models"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// AdminCreator registers admins.
type AdminCreator interface {
	CreateAdmin(ctx context.Context, email, password, role string) (*models.AdminUser, error)
}

// SettingsStore reads and replaces the stored calculator settings.
type SettingsStore interface {
	Current(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, adminID int64, expectedVersion int64, next settings.Settings) (int64, error)
}

// Backend is what commands that touch storage run against.
type Backend struct {
	Admins   AdminCreator
	Settings SettingsStore
	Closer   func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b != nil && b.Closer != nil {
		b.Closer()
	}
}

// BackendOpener connects to storage. It is only called by commands that need it.
type BackendOpener func(ctx context.Context) (*Backend, error)

// NewRootCmd creates the calculatorctl root command.
func NewRootCmd(open BackendOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "calculatorctl",
		Short:         "Operate the Gulf Solar savings calculator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(os.Stdout)

	cmd.AddCommand(
		newAdminCmd(open),
		newEstimateCmd(open),
		newSettingsCmd(open),
	)
	return cmd
}
