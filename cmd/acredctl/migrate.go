package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agencia-vs/acreditaciones/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if err := database.MigrateUp(e.DatabaseURL); err != nil {
			return err
		}
		return printStatus(cmd, e.DatabaseURL)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default: 1)",
	Example: `  acredctl migrate down
  acredctl migrate down 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("steps must be a number: %w", err)
			}
			steps = n
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		if err := database.MigrateDown(e.DatabaseURL, steps); err != nil {
			return err
		}
		return printStatus(cmd, e.DatabaseURL)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		return printStatus(cmd, e.DatabaseURL)
	},
}

func printStatus(cmd *cobra.Command, databaseURL string) error {
	status, err := database.Status(databaseURL)
	if err != nil {
		return err
	}
	if !status.Applied {
		cmd.Println("no migrations applied")
		return nil
	}
	cmd.Printf("schema version %d (dirty: %t)\n", status.Version, status.Dirty)
	return nil
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
