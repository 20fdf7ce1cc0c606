package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/symbiotic-listener/internal/config"
	"github.com/smartdevs17/symbiotic-listener/internal/metrics"
	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(&StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "data", "log.db"),
		Table:            "log",
	})
	require.NoError(t, err)
	require.NoError(t, store.Connect(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.db.Exec(`CREATE TABLE log (content TEXT)`)
	require.NoError(t, err)

	return store
}

func readContents(t *testing.T, store *SQLiteStore) []string {
	t.Helper()

	rows, err := store.db.Query(`SELECT content FROM log ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		contents = append(contents, c)
	}
	require.NoError(t, rows.Err())
	return contents
}

func TestQuoteTable(t *testing.T) {
	quoted, err := quoteTable("symbiotic.log")
	require.NoError(t, err)
	assert.Equal(t, `"symbiotic"."log"`, quoted)

	quoted, err = quoteTable(`we"ird`)
	require.NoError(t, err)
	assert.Equal(t, `"we""ird"`, quoted)

	for _, bad := range []string{"", "a..b", ".log", "a.b.c"} {
		_, err := quoteTable(bad)
		assert.Error(t, err, bad)
	}
}

func TestPostgresInsertStatement(t *testing.T) {
	store, err := NewPostgresStore(&StorageConfig{Table: "symbiotic.log"})
	require.NoError(t, err)
	assert.Equal(t, `insert into "symbiotic"."log"(content) values ($1)`, store.insertSQL)

	// Not connected yet.
	err = store.Insert(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeDatabase))
	assert.NoError(t, store.Close())
}

func TestPostgresConnectRefused(t *testing.T) {
	db := config.DatabaseConfig{Port: 1, Name: "postgres", SSLMode: "disable", ConnectTimeout: 2 * time.Second}
	store, err := NewPostgresStore(&StorageConfig{ConnectionString: db.DSN(), Table: "symbiotic.log"})
	require.NoError(t, err)

	err = store.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeConnection))
}

func TestSQLiteInsert(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	for _, payload := range []string{"hello", "", "multi\nline ✓", "shutdown"} {
		require.NoError(t, store.Insert(ctx, payload))
	}

	assert.Equal(t, []string{"hello", "", "multi\nline ✓", "shutdown"}, readContents(t, store))
}

func TestSQLiteInsertMissingTable(t *testing.T) {
	store, err := NewSQLiteStore(&StorageConfig{
		ConnectionString: filepath.Join(t.TempDir(), "log.db"),
		Table:            "log",
	})
	require.NoError(t, err)
	require.NoError(t, store.Connect(context.Background()))
	defer store.Close()

	err = store.Insert(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeDatabase))
}

func TestNewLogStore(t *testing.T) {
	db := config.DatabaseConfig{Port: 5432, Name: "postgres"}

	store, err := NewLogStore(&config.StorageConfig{Type: "postgres", Table: "symbiotic.log"}, db)
	require.NoError(t, err)
	assert.IsType(t, &PostgresStore{}, store)

	store, err = NewLogStore(&config.StorageConfig{Type: "SQLite", Table: "log", ConnectionString: "x.db"}, db)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)

	_, err = NewLogStore(&config.StorageConfig{Type: "mongo", Table: "log"}, db)
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeConfiguration))

	_, err = NewLogStore(&config.StorageConfig{Type: "postgres", Table: "a.b.c"}, db)
	require.Error(t, err)

	_, err = NewLogStore(&config.StorageConfig{Type: "sqlite", Table: "log"}, db)
	require.Error(t, err)
}

type failingStore struct {
	LogStore
}

func (failingStore) Insert(context.Context, string) error { return errors.New("boom") }

func TestStoreWithMetrics(t *testing.T) {
	m := metrics.NewManager()
	pm := m.GetPrometheusMetrics()

	ok := NewStoreWithMetrics(newTestSQLiteStore(t), "log", m)
	require.NoError(t, ok.Insert(context.Background(), "hello"))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.DatabaseOperationsTotal.WithLabelValues("insert", "log", "success")))

	bad := NewStoreWithMetrics(failingStore{}, "log", m)
	require.Error(t, bad.Insert(context.Background(), "hello"))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.DatabaseOperationsTotal.WithLabelValues("insert", "log", "error")))

	// A nil manager is allowed.
	plain := NewStoreWithMetrics(newTestSQLiteStore(t), "log", nil)
	assert.NoError(t, plain.Insert(context.Background(), "hello"))
}
