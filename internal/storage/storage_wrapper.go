package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/symbiotic-listener/internal/metrics"
)

// StoreWithMetrics wraps a log store with metrics
type StoreWithMetrics struct {
	LogStore
	table          string
	metricsManager *metrics.Manager
}

// NewStoreWithMetrics creates a log store wrapper with metrics
func NewStoreWithMetrics(store LogStore, table string, metricsManager *metrics.Manager) *StoreWithMetrics {
	return &StoreWithMetrics{
		LogStore:       store,
		table:          table,
		metricsManager: metricsManager,
	}
}

// Insert inserts a log entry and records metrics
func (s *StoreWithMetrics) Insert(ctx context.Context, content string) error {
	start := time.Now()

	err := s.LogStore.Insert(ctx, content)

	if s.metricsManager != nil {
		status := "success"
		if err != nil {
			status = "error"
		}

		s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(
			"insert",
			s.table,
			status,
			time.Since(start),
		)
	}

	return err
}
