package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const hypertableSQL = `SELECT create_hypertable('metric_samples', 'time', if_not_exists => TRUE, migrate_data => TRUE)`

type Migrator struct {
	db *DB
}

func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db}
}

// Run applies every embedded migration in name order. Migrations are
// idempotent so Run is safe on every start. When TimescaleDB is installed
// metric_samples is converted into a hypertable.
func (m *Migrator) Run(ctx context.Context) error {
	files, err := MigrationFiles()
	if err != nil {
		return fmt.Errorf("failed to get migration files: %w", err)
	}

	for _, file := range files {
		if err := m.executeMigration(ctx, file); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	timescale, err := m.db.IsTimescaleDBEnabled(ctx)
	if err != nil {
		logger.Warnf("Skipping hypertable setup: %v", err)
		return nil
	}
	if timescale {
		present, err := m.db.tableExists(ctx, "metric_samples")
		if err != nil {
			return err
		}
		if !present {
			return nil
		}
		if _, err := m.db.ExecContext(ctx, hypertableSQL); err != nil {
			return fmt.Errorf("failed to create metric_samples hypertable: %w", err)
		}
		logger.Info("metric_samples stored as a TimescaleDB hypertable")
	}

	return nil
}

// MigrationFiles lists the embedded migrations in the order they run.
func MigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	return files, nil
}

func (m *Migrator) executeMigration(ctx context.Context, filename string) error {
	content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	logger.WithField("migration", filename).Info("Executing migration")

	return m.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute SQL: %w", err)
		}
		return nil
	})
}
