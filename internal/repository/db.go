package repository

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/config"
)

// sqlxConnect is swapped in tests.
var sqlxConnect = sqlx.Connect

// Connect opens the application database, creating it through the maintenance
// "postgres" database when it does not exist yet, and retries while the server starts up.
func Connect(cfg config.DatabaseConfig, maxAttempts int, delay time.Duration, logger *logrus.Logger) (*sqlx.DB, error) {
	if err := ensureDatabase(cfg, logger); err != nil {
		logger.WithError(err).Warn("could not verify database existence, connecting anyway")
	}

	dsn := cfg.GetDSN()
	var db *sqlx.DB
	var err error
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlxConnect("postgres", dsn)
		if err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
			return db, nil
		}

		logger.WithFields(logrus.Fields{
			"attempt": i + 1,
			"of":      maxAttempts,
		}).WithError(err).Warn("failed to connect to database")
		if i < maxAttempts-1 {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

func ensureDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) error {
	maintenance := cfg
	maintenance.Name = "postgres"

	pgDB, err := sqlxConnect("postgres", maintenance.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		logger.WithField("database", cfg.Name).Info("database does not exist, creating")
		if _, err := pgDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(cfg.Name)); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}
	return nil
}
