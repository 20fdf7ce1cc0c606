// File: internal/storage/factory.go
package storage

import (
	"strings"

	"github.com/smartdevs17/symbiotic-listener/internal/config"
	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

// NewLogStore creates a log store based on configuration. Postgres stores
// connect with the database settings; sqlite stores use the configured path.
func NewLogStore(cfg *config.StorageConfig, db config.DatabaseConfig) (LogStore, error) {
	if err := ValidateStorageConfig(cfg); err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Type) {
	case "sqlite":
		return NewSQLiteStore(&StorageConfig{
			Type:             "sqlite",
			ConnectionString: cfg.ConnectionString,
			Table:            cfg.Table,
		})
	default:
		return NewPostgresStore(&StorageConfig{
			Type:             "postgres",
			ConnectionString: db.DSN(),
			Table:            cfg.Table,
		})
	}
}

// ValidateStorageConfig validates storage configuration
func ValidateStorageConfig(cfg *config.StorageConfig) error {
	if cfg.Type == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Storage type is required")
	}

	supported := false
	for _, t := range config.StorageTypes {
		if strings.ToLower(cfg.Type) == t {
			supported = true
			break
		}
	}
	if !supported {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			"Unsupported storage type",
			"Supported types: "+strings.Join(config.StorageTypes, ", "))
	}

	if _, err := quoteTable(cfg.Table); err != nil {
		return err
	}

	if strings.ToLower(cfg.Type) == "sqlite" && cfg.ConnectionString == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Storage connection string is required for sqlite")
	}

	return nil
}

func errInvalidTable(table string) error {
	return utils.NewAppError(utils.ErrCodeConfiguration,
		"Invalid log table", "expected table or schema.table, got "+`"`+table+`"`)
}
