package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "catmig",
	Short: "Migrate a legacy product catalog dump into the catalog database",
	Long: `catmig reads the legacy categories and products SQL dumps, reconciles
categories, finds product images and upserts everything into the catalog
database by slug. Runs are repeatable: a second run over the same dumps
updates records in place.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Canceling ctx stops a running migration
// between rows.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Database file, or DSN for pgx (overrides CATMIG_DB_PATH / CATMIG_DB_DSN)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite3, sqlite or pgx (overrides CATMIG_DB_DRIVER)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")
}
