// Package handler turns notifications into log rows.
package handler

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/symbiotic-listener/internal/models"
	"github.com/smartdevs17/symbiotic-listener/internal/shutdown"
	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

// Inserter is the part of the log store the handler needs
type Inserter interface {
	Insert(ctx context.Context, content string) error
}

// LogHandler inserts every payload and fires the stop signal on the sentinel
type LogHandler struct {
	store  Inserter
	stop   *shutdown.Signal
	logger *logrus.Entry
}

// NewLogHandler creates a handler writing to store
func NewLogHandler(store Inserter, stop *shutdown.Signal) *LogHandler {
	return &LogHandler{
		store:  store,
		stop:   stop,
		logger: utils.ComponentLogger("handler"),
	}
}

// Handle processes one notification. Timeouts are ignored. A payload is
// inserted before the sentinel check, so a failed insert never stops the
// runner through the signal; the error is returned instead.
func (h *LogHandler) Handle(ctx context.Context, n models.Notification) error {
	if n.IsTimeout() {
		return nil
	}

	if err := h.store.Insert(ctx, n.Payload); err != nil {
		return fmt.Errorf("failed to log notification on %q: %w", n.Channel, err)
	}

	h.logger.WithFields(logrus.Fields{
		"channel": n.Channel,
		"pid":     n.PID,
		"payload": n.Payload,
	}).Debug("Notification logged")

	if n.IsShutdown() {
		h.logger.WithField("channel", n.Channel).Info("Shutdown payload received")
		h.stop.Fire()
	}

	return nil
}
