// Package cli implements matchctl, the operator command line for the
// matching backend.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/partimer-be/db/migrations"
	"github.com/cuongbtq/partimer-be/internal/config"
	"github.com/cuongbtq/partimer-be/internal/matching"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
	"github.com/cuongbtq/partimer-be/internal/matching/storage"
	"github.com/cuongbtq/partimer-be/shared/logger"
	"github.com/cuongbtq/partimer-be/shared/postgresql"
)

const app = "matchctl"

// Backend is what the online commands need from the database
type Backend interface {
	TriggerMatching(ctx context.Context, jobID int64, maxMatches int) (*domain.MatchResult, error)
	ExpireNow(ctx context.Context) (int, error)
	Migrate(ctx context.Context) ([]string, error)
	Close() error
}

// Connector opens a Backend for the loaded configuration
type Connector func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error)

type options struct {
	cfgFile string
	debug   bool
	json    bool
	connect Connector
}

// NewRootCommand builds the matchctl command tree. A nil connect uses PostgreSQL.
func NewRootCommand(connect Connector) *cobra.Command {
	if connect == nil {
		connect = connectPostgres
	}
	opts := &options{connect: connect}

	defaultConfig := os.Getenv("MATCHCTL_CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/worker-service/config.yaml"
	}

	rootCmd := &cobra.Command{
		Use:           app,
		Short:         "matchctl runs matching, expiry and migrations against the partimer database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", defaultConfig, "path to the service configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&opts.json, "json", "j", false, "json format for logging")

	rootCmd.AddCommand(
		newMigrateCommand(opts),
		newTriggerCommand(opts),
		newExpireCommand(opts),
		newScoreCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// Execute runs matchctl with the process arguments
func Execute() error {
	return NewRootCommand(nil).Execute()
}

// backend loads the configuration and opens the Backend. Logs go to stderr
// so command output on stdout stays machine readable.
func (o *options) backend(ctx context.Context) (Backend, func(), error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	level, format := "warn", "console"
	if o.debug {
		level = "debug"
	}
	if o.json {
		format = "json"
	}
	log, err := logger.New(&logger.Config{Level: level, Format: format, Output: "stderr"})
	if err != nil {
		return nil, nil, err
	}

	b, err := o.connect(ctx, cfg, log.Logger)
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	return b, func() {
		if err := b.Close(); err != nil {
			log.Warn("Failed to close backend", slog.Any("error", err))
		}
		log.Close()
	}, nil
}

type postgresBackend struct {
	*matching.Service
	db *postgresql.Client
}

func connectPostgres(_ context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	db, err := postgresql.NewClient(cfg.PostgresConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := storage.NewPostgresStore(db.GetDB(), logger)
	return &postgresBackend{
		Service: matching.NewService(store, logger, cfg.MatchingServiceConfig()),
		db:      db,
	}, nil
}

func (b *postgresBackend) Migrate(ctx context.Context) ([]string, error) {
	return b.db.Migrate(ctx, migrations.Files)
}

func (b *postgresBackend) Close() error {
	return b.db.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
