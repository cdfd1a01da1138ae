// Package cli implements the chronicle command line interface.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollis-dev/chronicle/internal/config"
	"github.com/hollis-dev/chronicle/internal/logger"
	"github.com/hollis-dev/chronicle/internal/pgstore"
	"github.com/hollis-dev/chronicle/internal/schema"
	"github.com/hollis-dev/chronicle/internal/store"
	"github.com/hollis-dev/chronicle/internal/temporal"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DBPath     string // overrides the configured sqlite path
	SchemasDir string // overrides the configured schema directory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the chronicle CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chronicle",
		Short: "Chronicle - versioned record store",
		Long:  "A valid-time versioned record store: every change to a subject opens a new version and closes the previous one, so past states stay queryable.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "sqlite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.SchemasDir, "schemas", "", "CUE schema directory (overrides config)")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewSupersedeCommand(opts))
	cmd.AddCommand(NewRetireCommand(opts))
	cmd.AddCommand(NewCurrentCommand(opts))
	cmd.AddCommand(NewAsOfCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openStore builds the store stack per configuration: the configured
// backend wrapped with CUE payload validation when a schema directory
// is set. The returned closer releases the backend.
func openStore(opts *RootOptions) (temporal.Store, func() error, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "loading config", err)
	}
	if opts.DBPath != "" {
		cfg.Backend = config.BackendSQLite
		cfg.SQLite.Path = opts.DBPath
	}
	if opts.SchemasDir != "" {
		cfg.Schemas.Dir = opts.SchemasDir
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level})
	if opts.Verbose {
		log = logger.New(logger.Config{Level: "debug"})
	}

	var (
		backend temporal.Store
		closer  func() error
	)
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := store.Open(cfg.SQLite.Path, store.WithLogger(log))
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "opening store", err)
		}
		backend, closer = s, s.Close
	case config.BackendPostgres:
		s, err := pgstore.Open(cfg.Postgres.DSN(), pgstore.WithLogger(log))
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "opening store", err)
		}
		backend, closer = s, s.Close
	default:
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("backend %q is not usable from the CLI", cfg.Backend))
	}

	if cfg.Schemas.Dir != "" {
		registry, err := schema.LoadDir(cfg.Schemas.Dir)
		if err != nil {
			_ = closer()
			return nil, nil, WrapExitError(ExitCommandError, "loading schemas", err)
		}
		backend = schema.Wrap(backend, registry)
	}

	return backend, closer, nil
}

// parseAt parses a --at flag value. Empty means now.
func parseAt(value string) (time.Time, error) {
	if value == "" {
		return temporal.WallClock{}.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: expected RFC3339, e.g. 2026-01-02T15:04:05Z", value)
	}
	return t.UTC().Truncate(time.Microsecond), nil
}
