// File: internal/listener/listener.go
package listener

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smartdevs17/symbiotic-listener/internal/metrics"
	"github.com/smartdevs17/symbiotic-listener/internal/models"
	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

const closeTimeout = 5 * time.Second

// Handler receives every delivered notification, payload or timeout
type Handler interface {
	Handle(ctx context.Context, n models.Notification) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, n models.Notification) error

// Handle calls f(ctx, n)
func (f HandlerFunc) Handle(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

// Conn is the subset of *pgx.Conn the listener uses
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens the dedicated listening connection
type Dialer func(ctx context.Context, dsn string) (Conn, error)

// Config holds listener configuration
type Config struct {
	DSN                 string        `json:"-"`
	Channel             string        `json:"channel"`
	NotificationTimeout time.Duration `json:"notification_timeout"`
	Policy              Policy        `json:"policy"`
}

// Listener subscribes to one channel and feeds a handler
type Listener struct {
	config         *Config
	dial           Dialer
	logger         *logrus.Entry
	metricsManager *metrics.Manager
}

// NewListener creates a listener. metricsManager may be nil.
func NewListener(config *Config, metricsManager *metrics.Manager) (*Listener, error) {
	if config.Channel == "" {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Listener channel is required")
	}
	if config.NotificationTimeout <= 0 {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Listener notification timeout must be positive")
	}
	if _, err := ParsePolicy(string(config.Policy)); err != nil {
		return nil, err
	}

	return &Listener{
		config:         config,
		dial:           dialPgx,
		logger:         utils.ComponentLogger("listener").WithField("channel", config.Channel),
		metricsManager: metricsManager,
	}, nil
}

// WithDialer replaces the connection dialer
func (l *Listener) WithDialer(dial Dialer) *Listener {
	l.dial = dial
	return l
}

func dialPgx(ctx context.Context, dsn string) (Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Run connects, subscribes and delivers notifications to h until ctx is
// cancelled, the connection fails, or h returns an error. There is no
// reconnection: any connection failure ends Run.
//
// On cancellation Run returns ctx.Err(); the notification being handled
// and anything still queued are abandoned.
func (l *Listener) Run(ctx context.Context, h Handler) error {
	conn, err := l.dial(ctx, l.config.DSN)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConnection, "Failed to open listener connection").Wrap(err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			l.logger.WithError(err).Debug("Listener connection close failed")
		}
	}()

	listenSQL := "LISTEN " + pgx.Identifier{l.config.Channel}.Sanitize()
	if _, err := conn.Exec(ctx, listenSQL); err != nil {
		return utils.NewAppError(utils.ErrCodeListener, "Failed to subscribe", l.config.Channel).Wrap(err)
	}

	l.setUp(true)
	defer l.setUp(false)

	l.logger.WithFields(logrus.Fields{
		"policy":               l.config.Policy,
		"notification_timeout": l.config.NotificationTimeout,
	}).Info("Listening for notifications")

	mb := newMailbox(l.config.Policy)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.receive(gctx, conn, mb) })
	g.Go(func() error { return l.dispatch(gctx, mb, h) })

	err = g.Wait()
	if ctx.Err() != nil {
		if pending := mb.len(); pending > 0 {
			l.logger.WithField("pending", pending).Info("Listener cancelled with undelivered notifications")
		}
		return ctx.Err()
	}
	return err
}

// receive reads notifications off the connection into the mailbox
func (l *Listener) receive(ctx context.Context, conn Conn, mb *mailbox) error {
	for {
		pn, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return utils.NewAppError(utils.ErrCodeListener, "Listener connection lost", l.config.Channel).Wrap(err)
		}

		n := models.NewPayload(pn.Channel, pn.Payload, pn.PID)
		dropped := mb.push(n)

		if l.metricsManager != nil {
			pm := l.metricsManager.GetPrometheusMetrics()
			pm.RecordNotificationReceived(l.config.Channel)
			for i := 0; i < dropped; i++ {
				pm.RecordNotificationDropped(l.config.Channel, string(l.config.Policy))
			}
		}
		if dropped > 0 {
			l.logger.WithField("dropped", dropped).Debug("Replaced undelivered notifications")
		}
	}
}

// dispatch hands mailbox contents to h in order, and a timeout marker
// whenever the channel stays silent for the notification timeout.
func (l *Listener) dispatch(ctx context.Context, mb *mailbox, h Handler) error {
	timer := time.NewTimer(l.config.NotificationTimeout)
	defer timer.Stop()

	for {
		for {
			// Nothing is delivered once cancellation has begun.
			if err := ctx.Err(); err != nil {
				return err
			}
			n, ok := mb.pop()
			if !ok {
				break
			}
			if err := l.deliver(ctx, h, n); err != nil {
				return err
			}
			timer.Reset(l.config.NotificationTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-mb.ready():
		case <-timer.C:
			if err := l.deliver(ctx, h, models.NewTimeout(l.config.Channel)); err != nil {
				return err
			}
			timer.Reset(l.config.NotificationTimeout)
		}
	}
}

func (l *Listener) deliver(ctx context.Context, h Handler, n models.Notification) error {
	start := time.Now()
	err := h.Handle(ctx, n)

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return ctx.Err()
		}
		return err
	}

	if l.metricsManager != nil {
		pm := l.metricsManager.GetPrometheusMetrics()
		if n.IsTimeout() {
			pm.RecordTimeout(l.config.Channel, time.Since(start))
		} else {
			pm.RecordNotificationDelivered(l.config.Channel, time.Since(start))
		}
	}
	return nil
}

func (l *Listener) setUp(up bool) {
	if l.metricsManager != nil {
		l.metricsManager.GetPrometheusMetrics().SetListenerUp(l.config.Channel, up)
	}
}
