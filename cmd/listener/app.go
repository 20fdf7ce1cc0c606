package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/symbiotic-listener/internal/config"
	"github.com/smartdevs17/symbiotic-listener/internal/handler"
	"github.com/smartdevs17/symbiotic-listener/internal/listener"
	"github.com/smartdevs17/symbiotic-listener/internal/metrics"
	"github.com/smartdevs17/symbiotic-listener/internal/runner"
	"github.com/smartdevs17/symbiotic-listener/internal/server"
	"github.com/smartdevs17/symbiotic-listener/internal/shutdown"
	"github.com/smartdevs17/symbiotic-listener/internal/storage"
	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *logrus.Logger
	metrics  *metrics.Manager
	store    storage.LogStore
	listener *listener.Listener
	runner   *runner.Runner
	server   *server.HTTPServer
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	app := &Application{config: cfg}

	if err := app.initializeLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Debug("Logger initialized")

	return nil
}

// initializeComponents builds the store, listener, handler and runner
func (app *Application) initializeComponents() error {
	app.metrics = metrics.NewManager()

	store, err := storage.NewLogStore(&app.config.Storage, app.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create log store: %w", err)
	}
	app.store = storage.NewStoreWithMetrics(store, app.config.Storage.Table, app.metrics)

	policy, err := listener.ParsePolicy(app.config.Listener.Policy)
	if err != nil {
		return err
	}

	app.listener, err = listener.NewListener(&listener.Config{
		DSN:                 app.config.Database.DSN(),
		Channel:             app.config.Listener.Channel,
		NotificationTimeout: app.config.Listener.NotificationTimeout,
		Policy:              policy,
	}, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	stop := shutdown.New()
	app.runner = runner.New(app.store, app.listener, handler.NewLogHandler(app.store, stop), stop)

	if app.config.Server.EnableMetrics {
		app.server, err = server.NewHTTPServer(&server.ServerConfig{
			Host: app.config.Server.Host,
			Port: app.config.Server.Port,
		}, app.metrics)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
	}

	return nil
}

// Run blocks until the shutdown payload arrives or a component fails
func (app *Application) Run(ctx context.Context) error {
	app.logger.WithFields(logrus.Fields{
		"version":  AppVersion,
		"port":     app.config.Database.Port,
		"database": app.config.Database.Name,
		"channel":  app.config.Listener.Channel,
		"policy":   app.config.Listener.Policy,
		"storage":  app.config.Storage.Type,
	}).Info("Starting symbiotic listener")

	if app.server != nil {
		if err := app.server.Start(); err != nil {
			return err
		}
		defer func() {
			if err := app.server.Stop(); err != nil {
				app.logger.WithError(err).Error("Failed to stop metrics server")
			}
		}()
	}

	if err := app.runner.Run(ctx); err != nil {
		return err
	}

	app.logger.Info("Symbiotic listener stopped")
	return nil
}
