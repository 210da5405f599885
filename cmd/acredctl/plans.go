package main

import (
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/agencia-vs/acreditaciones/internal/billing"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage billing plans",
}

var plansSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default billing plans",
	Long: `Create the default billing plans. Plans that already exist are left
untouched, so the command can be run on every deploy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPool(cmd.Context(), func(_ *env, pool *pgxpool.Pool) error {
			repo := billing.NewRepository(pool)
			for _, p := range billing.DefaultPlans {
				plan := p
				err := repo.CreatePlan(cmd.Context(), &plan)
				switch {
				case errors.Is(err, billing.ErrDuplicatePlan):
					cmd.Printf("%-12s exists\n", plan.Code)
				case err != nil:
					return err
				default:
					cmd.Printf("%-12s created (%s events, %s registrations per event)\n", plan.Code,
						humanize.Comma(int64(plan.MaxEvents)), humanize.Comma(int64(plan.MaxRegistrationsPerEvent)))
				}
			}
			return nil
		})
	},
}

func init() {
	plansCmd.AddCommand(plansSeedCmd)
	rootCmd.AddCommand(plansCmd)
}
