package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

type MigrationResult struct {
	Version uint `json:"version"`
	Changed bool `json:"changed"`
}

// Migrator applies the SQL files in a directory to the database at databaseURL.
type Migrator struct {
	sourceURL   string
	databaseURL string
	attempts    int
	delay       time.Duration
	logger      *logrus.Logger
}

func NewMigrator(migrationsPath, databaseURL string, logger *logrus.Logger) *Migrator {
	return &Migrator{
		sourceURL:   "file://" + migrationsPath,
		databaseURL: databaseURL,
		attempts:    5,
		delay:       5 * time.Second,
		logger:      logger,
	}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	var mg *migrate.Migrate
	var err error

	for i := 0; i < m.attempts; i++ {
		mg, err = migrate.New(m.sourceURL, m.databaseURL)
		if err == nil {
			return mg, nil
		}
		m.logger.WithFields(logrus.Fields{
			"attempt": i + 1,
			"of":      m.attempts,
		}).WithError(err).Warn("failed to create migrate instance")
		time.Sleep(m.delay)
	}

	return nil, fmt.Errorf("failed to create migrate instance after retries: %w", err)
}

// Up migrates to the newest schema. A dirty state left by a crashed run is forced
// back to its recorded version first.
func (m *Migrator) Up() (MigrationResult, error) {
	mg, err := m.open()
	if err != nil {
		return MigrationResult{}, err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		m.logger.WithField("version", version).Warn("found dirty database state, forcing version")
		if err := mg.Force(int(version)); err != nil {
			return MigrationResult{}, fmt.Errorf("failed to force version: %w", err)
		}
	}

	changed := true
	if err := mg.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return MigrationResult{}, fmt.Errorf("failed to run migrations: %w", err)
		}
		changed = false
	}

	version, _, err = mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("failed to get migration version: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"version": version,
		"changed": changed,
	}).Info("database schema is up to date")

	return MigrationResult{Version: version, Changed: changed}, nil
}

// Down rolls back a single migration.
func (m *Migrator) Down() (MigrationResult, error) {
	mg, err := m.open()
	if err != nil {
		return MigrationResult{}, err
	}
	defer mg.Close()

	if err := mg.Steps(-1); err != nil {
		return MigrationResult{}, fmt.Errorf("failed to roll back migration: %w", err)
	}

	version, _, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return MigrationResult{Version: version, Changed: true}, nil
}
