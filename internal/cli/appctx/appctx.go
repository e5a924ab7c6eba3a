// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction and database opening
// to reduce boilerplate across commands.
package appctx

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stonegoods/catmig/internal/config"
	"github.com/stonegoods/catmig/internal/db"
	"github.com/stonegoods/catmig/internal/logging"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration with flag overrides applied
	Config *config.Config

	// Logger writes structured logs to stderr
	Logger *zap.Logger

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// SkipMigrationCheck opens the database without refusing a schema
	// that is behind. Only the db commands set it.
	SkipMigrationCheck bool
}

// DefaultOptions returns default options (DB required and migrated).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// --db is a path for sqlite and a DSN for pgx
	if v := flagValue(cmd, "driver"); v != "" {
		app.Config.DBDriver = v
	}
	if v := flagValue(cmd, "db"); v != "" {
		if app.Config.DBDriver == db.DriverPostgres {
			app.Config.DBDSN = v
		} else {
			app.Config.DBPath = v
		}
	}

	verbose := flagValue(cmd, "verbose") == "true"
	logger, err := logging.New(app.Config.LogLevel, verbose)
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	if opts.NeedsDB {
		if app.Config.DSN() == "" {
			app.Close()
			return nil, fmt.Errorf("no database configured for driver %s (set CATMIG_DB_PATH or CATMIG_DB_DSN, or use --db)", app.Config.DBDriver)
		}
		database, err := db.Open(app.Config.DBDriver, app.Config.DSN())
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		app.DB = database

		if !opts.SkipMigrationCheck {
			if err := database.RequiresMigrationError(); err != nil {
				app.Close()
				return nil, err
			}
		}
		logger.Debug("database opened",
			zap.String("driver", app.Config.DBDriver),
			zap.String("dialect", string(database.Dialect())))
	}

	return app, nil
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
