//go:build integration

package main

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/smartdevs17/symbiotic-listener/internal/config"
)

const (
	testDatabase = "workshop"
	testChannel  = "events"
)

// setupPostgres starts a disposable PostgreSQL container with the log table
// and returns its mapped port plus an admin connection.
func setupPostgres(t *testing.T) (int, *pgx.Conn) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDatabase),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	admin, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { admin.Close(ctx) })

	_, err = admin.Exec(ctx, `create schema symbiotic`)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, `create table symbiotic.log (id serial primary key, content text not null)`)
	require.NoError(t, err)

	// Credentials reach both drivers through the standard libpq variables
	t.Setenv("PGUSER", "test")
	t.Setenv("PGPASSWORD", "test")

	return port.Int(), admin
}

func loggedContents(t *testing.T, conn *pgx.Conn) []string {
	t.Helper()

	rows, err := conn.Query(context.Background(), `select content from symbiotic.log order by id`)
	require.NoError(t, err)

	contents, err := pgx.CollectRows(rows, pgx.RowTo[string])
	require.NoError(t, err)
	return contents
}

func notify(t *testing.T, conn *pgx.Conn, payload string) {
	t.Helper()

	_, err := conn.Exec(context.Background(), `select pg_notify($1, $2)`, testChannel, payload)
	require.NoError(t, err)
}

func TestIntegration_LogsUntilShutdown(t *testing.T) {
	port, admin := setupPostgres(t)

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyArgs([]string{strconv.Itoa(port), testDatabase, testChannel}))
	cfg.Listener.NotificationTimeout = 200 * time.Millisecond
	require.NoError(t, cfg.Validate())

	app, err := NewApplication(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	// The listening session's last statement stays LISTEN while it waits
	require.Eventually(t, func() bool {
		var n int
		err := admin.QueryRow(context.Background(),
			`select count(*) from pg_stat_activity where query ilike 'listen %'`).Scan(&n)
		return err == nil && n == 1
	}, 10*time.Second, 50*time.Millisecond, "listener never subscribed")

	notify(t, admin, "hello")
	require.Eventually(t, func() bool {
		return len(loggedContents(t, admin)) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"hello"}, loggedContents(t, admin))

	notify(t, admin, "shutdown")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not exit after shutdown payload")
	}

	assert.Equal(t, []string{"hello", "shutdown"}, loggedContents(t, admin))
}

func TestIntegration_MissingTableFailsInsert(t *testing.T) {
	port, admin := setupPostgres(t)

	_, err := admin.Exec(context.Background(), `drop table symbiotic.log`)
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyArgs([]string{strconv.Itoa(port), testDatabase, testChannel}))
	require.NoError(t, cfg.Validate())

	app, err := NewApplication(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		var n int
		err := admin.QueryRow(context.Background(),
			`select count(*) from pg_stat_activity where query ilike 'listen %'`).Scan(&n)
		return err == nil && n == 1
	}, 10*time.Second, 50*time.Millisecond, "listener never subscribed")

	notify(t, admin, "hello")

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener kept running after insert failure")
	}
}

func TestIntegration_UnreachableDatabase(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyArgs([]string{"1", testDatabase, testChannel}))
	require.NoError(t, cfg.Validate())

	app, err := NewApplication(cfg)
	require.NoError(t, err)

	assert.Error(t, app.Run(context.Background()))
}
