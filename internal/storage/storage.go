// File: internal/storage/storage.go
package storage

import (
	"context"
	"strings"

	"github.com/lib/pq"
)

// LogStore appends notification payloads to the log table.
type LogStore interface {
	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Insert appends one row with the given content.
	Insert(ctx context.Context, content string) error
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string `json:"type"`
	ConnectionString string `json:"connection_string"`
	Table            string `json:"table"`
}

// quoteTable quotes a table reference of the form "table" or "schema.table".
func quoteTable(table string) (string, error) {
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return "", errInvalidTable(table)
	}

	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return "", errInvalidTable(table)
		}
		quoted = append(quoted, pq.QuoteIdentifier(part))
	}
	return strings.Join(quoted, "."), nil
}
