// Package runner wires the log store, the listener and the shutdown signal
// together and owns the RUNNING -> STOPPING lifecycle.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/symbiotic-listener/internal/listener"
	"github.com/smartdevs17/symbiotic-listener/internal/shutdown"
	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

// State is the runner lifecycle state
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Store is the connection the runner opens, checks and closes
type Store interface {
	Connect(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Listener runs until its context is cancelled or it fails
type Listener interface {
	Run(ctx context.Context, h listener.Handler) error
}

// Runner owns the store connection and the listener goroutine
type Runner struct {
	store    Store
	listener Listener
	handler  listener.Handler
	stop     *shutdown.Signal
	logger   *logrus.Entry

	mu      sync.Mutex
	state   State
	started bool
}

// New creates a runner. handler is expected to fire stop on the sentinel.
func New(store Store, l Listener, handler listener.Handler, stop *shutdown.Signal) *Runner {
	return &Runner{
		store:    store,
		listener: l,
		handler:  handler,
		stop:     stop,
		logger:   utils.ComponentLogger("runner"),
		state:    StateIdle,
	}
}

// State returns the current lifecycle state
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run connects the store, starts the listener and blocks until the stop
// signal fires or the listener fails. On the signal the listener is
// cancelled without draining and the store is closed. Errors are never
// retried; the first one is returned.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle || r.started {
		r.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeInternal, "Runner already started")
	}
	r.started = true
	r.mu.Unlock()

	if err := r.store.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect log store: %w", err)
	}
	if err := r.store.Ping(ctx); err != nil {
		if cerr := r.store.Close(); cerr != nil {
			r.logger.WithError(cerr).Error("Failed to close log store")
		}
		return fmt.Errorf("log store not reachable: %w", err)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- r.listener.Run(listenCtx, r.handler)
	}()

	r.setState(StateRunning)
	r.logger.Info("Runner started")

	var runErr error
	select {
	case <-r.stop.Done():
		r.setState(StateStopping)
		r.logger.Info("Shutdown requested, cancelling listener")
		cancel()
		if err := <-listenErr; err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("listener stopped: %w", err)
		}

	case err := <-listenErr:
		r.setState(StateStopping)
		if err == nil {
			err = utils.NewAppError(utils.ErrCodeListener, "Listener exited unexpectedly")
		}
		runErr = fmt.Errorf("listener stopped: %w", err)
	}

	if err := r.store.Close(); err != nil {
		if runErr == nil {
			runErr = fmt.Errorf("failed to close log store: %w", err)
		} else {
			r.logger.WithError(err).Error("Failed to close log store")
		}
	}

	if runErr != nil {
		r.logger.WithError(runErr).Error("Runner stopped with error")
		return runErr
	}

	r.logger.Info("Runner stopped")
	return nil
}
