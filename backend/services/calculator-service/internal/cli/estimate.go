package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/format"
	"gulfsolar/backend/services/calculator-service/internal/service"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

type defaultSettings struct{}

func (defaultSettings) Current(context.Context) (settings.Settings, error) {
	return settings.Defaults(), nil
}

func newEstimateCmd(open BackendOpener) *cobra.Command {
	var (
		bill          string
		roof          string
		homeDuringDay bool
		useDefaults   bool
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Compute an estimate with the current settings",
		Example: `  calculatorctl estimate --bill 220 --roof pitched --home
  calculatorctl estimate --bill 220 --roof flat --defaults`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var provider service.SettingsProvider = defaultSettings{}
			if !useDefaults {
				backend, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer backend.Close()
				provider = backend.Settings
			}

			in := estimator.Input{
				MonthlyBill:   estimator.ParseBill(bill),
				RoofType:      estimator.ParseRoofType(roof),
				HomeDuringDay: homeDuringDay,
			}
			est, err := service.NewCalculatorService(provider).Estimate(cmd.Context(), in)
			if errors.Is(err, estimator.ErrNotEstimable) {
				cmd.Println("not estimable")
				return nil
			}
			if err != nil {
				return err
			}

			d := format.FromOutput(est.Output, est.Settings.Currency)
			cmd.Printf("Region:          %s\n", est.Settings.RegionLabel)
			cmd.Printf("System size:     %s\n", d.SystemSize)
			cmd.Printf("Upfront cost:    %s\n", d.UpfrontCost)
			cmd.Printf("Monthly savings: %s\n", d.MonthlySavings)
			cmd.Printf("Annual savings:  %s\n", d.AnnualSavings)
			cmd.Printf("Payback:         %s\n", d.Payback)
			cmd.Printf("Oil not burned:  %s\n", d.OilNotBurned)
			return nil
		},
	}

	cmd.Flags().StringVar(&bill, "bill", "", "average monthly power bill")
	cmd.Flags().StringVar(&roof, "roof", string(estimator.RoofPitched), "roof type: pitched, flat or other")
	cmd.Flags().BoolVar(&homeDuringDay, "home", false, "someone is home during the day")
	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "use built-in default settings instead of the database")
	return cmd
}
