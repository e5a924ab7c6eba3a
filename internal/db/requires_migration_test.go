package db_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stonegoods/catmig/internal/db"
)

func TestRequiresMigrationError(t *testing.T) {
	// Create a temporary database with only some migrations applied
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.Open(db.DriverSQLite3, dbPath)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	defer database.Close()

	// Create schema_migrations table and add only first migration
	_, err = database.Exec(`
		CREATE TABLE schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		t.Fatalf("could not create schema_migrations: %v", err)
	}

	_, err = database.Exec(`INSERT INTO schema_migrations (version) VALUES ('000001_catalog.sql')`)
	if err != nil {
		t.Fatalf("could not insert migration: %v", err)
	}

	migErr := database.RequiresMigrationError()
	if migErr == nil {
		t.Fatal("expected migration error, got nil")
	}

	errStr := migErr.Error()
	if !strings.Contains(errStr, dbPath) {
		t.Errorf("error should contain db path '%s', got: %s", dbPath, errStr)
	}
	if !strings.Contains(errStr, "000001_catalog.sql") {
		t.Errorf("error should contain version '000001_catalog.sql', got: %s", errStr)
	}
	if !strings.Contains(errStr, "pending migration") {
		t.Errorf("error should mention pending migrations, got: %s", errStr)
	}
	if !strings.Contains(errStr, "catmig db migrate") {
		t.Errorf("error should tell how to migrate, got: %s", errStr)
	}
}

func TestRequiresMigrationError_UpToDate(t *testing.T) {
	for _, driver := range []string{db.DriverSQLite3, db.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			database, err := db.Open(driver, filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatalf("could not open db: %v", err)
			}
			defer database.Close()

			if err := database.Migrate(); err != nil {
				t.Fatalf("migrate failed: %v", err)
			}
			if err := database.RequiresMigrationError(); err != nil {
				t.Errorf("expected no migration error after Migrate, got: %v", err)
			}

			// Re-running is a no-op
			applied, err := database.MigrateWithInfo()
			if err != nil {
				t.Fatalf("second migrate failed: %v", err)
			}
			if len(applied) != 0 {
				t.Errorf("expected no migrations on second run, got %v", applied)
			}
		})
	}
}

func TestMigrationStatus_FreshDatabase(t *testing.T) {
	database, err := db.Open(db.DriverSQLite3, filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	defer database.Close()

	applied, pending, err := database.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected nothing applied, got %v", applied)
	}
	if len(pending) < 2 || pending[0] != "000001_catalog.sql" {
		t.Errorf("expected sorted pending migrations, got %v", pending)
	}
}
