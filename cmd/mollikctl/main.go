// Command mollikctl is the operator CLI for the mollik archive: schema
// migrations, development seed data, account management and counters.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"mollik/internal/cache"
	"mollik/internal/config"
	"mollik/internal/database"
)

var version = "dev"

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "mollikctl",
		Short:         "Operator tools for the mollik archive",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, NoColor: !isatty.IsTerminal(os.Stderr.Fd())})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(NewMigrateCommand())
	root.AddCommand(NewSeedCommand())
	root.AddCommand(NewUserCommand())
	root.AddCommand(NewVisitorsCommand())
	root.AddCommand(NewCacheCommand())

	return root
}

// openDB connects to PostgreSQL using the server's environment settings.
func openDB(ctx context.Context) (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return database.Connect(ctx, cfg.DSN())
}

// openValkey connects to Valkey using the server's environment settings.
func openValkey(ctx context.Context) (*redis.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	client, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}
