package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

// PostgresStore implements LogStore on a single PostgreSQL connection
type PostgresStore struct {
	db        *sql.DB
	config    *StorageConfig
	logger    *logrus.Entry
	insertSQL string
}

// NewPostgresStore creates a new PostgreSQL log store
func NewPostgresStore(config *StorageConfig) (*PostgresStore, error) {
	table, err := quoteTable(config.Table)
	if err != nil {
		return nil, err
	}

	return &PostgresStore{
		config:    config,
		logger:    utils.ComponentLogger("storage").WithField("driver", "postgres"),
		insertSQL: fmt.Sprintf("insert into %s(content) values ($1)", table),
	}, nil
}

// Connect opens the connection. No retry: a refused connection is returned.
func (p *PostgresStore) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database").Wrap(err)
	}

	// One persistent handle
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return utils.NewAppError(utils.ErrCodeConnection, "Failed to connect to PostgreSQL", pgErrorDetails(err)).Wrap(err)
	}

	p.db = db
	p.logger.WithField("table", p.config.Table).Info("PostgreSQL log store connected")

	return nil
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	if p.db == nil {
		return nil
	}

	err := p.db.Close()
	p.db = nil
	p.logger.Info("PostgreSQL log store closed")
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to close PostgreSQL connection").Wrap(err)
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgresStore) Ping(ctx context.Context) error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}
	return p.db.PingContext(ctx)
}

// Insert appends content to the log table
func (p *PostgresStore) Insert(ctx context.Context, content string) error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}

	if _, err := p.db.ExecContext(ctx, p.insertSQL, content); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert log entry", pgErrorDetails(err)).Wrap(err)
	}

	p.logger.WithField("bytes", len(content)).Debug("Log entry inserted")
	return nil
}

// pgErrorDetails extracts the SQLSTATE name from a server error
func pgErrorDetails(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Sprintf("%s (%s)", pqErr.Code.Name(), pqErr.Code)
	}
	return ""
}
