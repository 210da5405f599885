// Command acredctl runs operator tasks against the acreditaciones database:
// schema migrations, the first superadmin and the default billing plans.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/agencia-vs/acreditaciones/internal/database"
)

// env holds the subset of the server configuration the CLI needs.
type env struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`
}

var rootCmd = &cobra.Command{
	Use:           "acredctl",
	Short:         "Operate an acreditaciones deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func loadEnv() (*env, error) {
	var e env
	if err := envconfig.Process("", &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// withPool loads the environment, opens a pool and runs fn with it.
func withPool(ctx context.Context, fn func(e *env, pool *pgxpool.Pool) error) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	db, err := database.New(ctx, e.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(e, db.Pool())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
