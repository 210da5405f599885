package main

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/auth"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first superadmin and print its API key",
	Long: `Create the first superadmin when no users exist yet.

The API key is printed once and cannot be recovered afterwards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		if !validation.ValidEmail(email) {
			return errors.New("--email must be a valid email address")
		}

		return withPool(cmd.Context(), func(e *env, pool *pgxpool.Pool) error {
			svc := auth.NewService(auth.NewRepository(pool), e.BcryptCost)
			rawKey, err := svc.BootstrapSuperadmin(cmd.Context(), name, email)
			if err != nil {
				return err
			}
			if rawKey == "" {
				cmd.Println("users already exist; nothing to do")
				return nil
			}
			cmd.Printf("superadmin %s created\nAPI key (shown once): %s\n", email, rawKey)
			return nil
		})
	},
}

func init() {
	bootstrapCmd.Flags().String("name", "Superadmin", "display name of the superadmin")
	bootstrapCmd.Flags().String("email", "", "email of the superadmin")
	_ = bootstrapCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(bootstrapCmd)
}
