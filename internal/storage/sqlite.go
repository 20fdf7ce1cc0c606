// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

// SQLiteStore implements LogStore using SQLite. The log table must exist.
type SQLiteStore struct {
	db        *sql.DB
	config    *StorageConfig
	logger    *logrus.Entry
	insertSQL string
}

// NewSQLiteStore creates a new SQLite log store
func NewSQLiteStore(config *StorageConfig) (*SQLiteStore, error) {
	table, err := quoteTable(config.Table)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{
		config:    config,
		logger:    utils.ComponentLogger("storage").WithField("driver", "sqlite"),
		insertSQL: fmt.Sprintf("insert into %s(content) values (?)", table),
	}, nil
}

// Connect opens the database file
func (s *SQLiteStore) Connect(ctx context.Context) error {
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory").Wrap(err)
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database").Wrap(err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return utils.NewAppError(utils.ErrCodeConnection, "Failed to open SQLite database").Wrap(err)
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite log store connected")

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	s.logger.Info("SQLite log store closed")
	return err
}

// Ping checks database connectivity
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}
	return s.db.PingContext(ctx)
}

// Insert appends content to the log table
func (s *SQLiteStore) Insert(ctx context.Context, content string) error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}

	if _, err := s.db.ExecContext(ctx, s.insertSQL, content); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert log entry").Wrap(err)
	}
	return nil
}
