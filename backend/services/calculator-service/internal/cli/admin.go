package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gulfsolar/backend/services/calculator-service/internal/models"
)

func newAdminCmd(open BackendOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(newAdminCreateCmd(open))
	return cmd
}

func newAdminCreateCmd(open BackendOpener) *cobra.Command {
	var email, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Example: `  calculatorctl admin create --email ops@gulfsolar.example --password 'long-secret'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			backend, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			admin, err := backend.Admins.CreateAdmin(cmd.Context(), email, password, role)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			cmd.Printf("created admin %d (%s, role %s)\n", admin.ID, admin.Email, admin.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "admin role")
	return cmd
}
