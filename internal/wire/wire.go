// Package wire provides dependency injection for beacon.
// It builds the object graph from configuration once per process.
package wire

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	cliadapter "github.com/example/beacon/internal/adapters/cli"
	"github.com/example/beacon/internal/adapters/lock"
	"github.com/example/beacon/internal/adapters/mcping"
	"github.com/example/beacon/internal/adapters/sqlite"
	"github.com/example/beacon/internal/adapters/telegram"
	"github.com/example/beacon/internal/adminhttp"
	"github.com/example/beacon/internal/app"
	"github.com/example/beacon/internal/config"
	"github.com/example/beacon/internal/db"
	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/ports/secondary"
	"github.com/example/beacon/internal/scheduler"
)

// Mode selects how notification effects run after a tick commits.
type Mode int

const (
	// ModeCLI runs effects inline so one-shot commands finish their fan-out
	// before exiting.
	ModeCLI Mode = iota
	// ModeServe runs effects on a bounded worker pool so a slow fan-out
	// never delays the next tick.
	ModeServe
)

// Container holds the wired services and the resources behind them.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Presence      primary.PresenceService
	Notifications primary.NotificationService
	Conversations primary.ConversationService

	// Inbound is nil when no Telegram token is configured.
	Inbound secondary.InboundSource

	async   *app.AsyncEffectExecutor
	closers []func() error
}

var (
	current    *Container
	currentErr error
	once       sync.Once
)

// Init builds the process-wide container on first call. Later calls return
// the first result regardless of their arguments.
func Init(cfg *config.Config, mode Mode) (*Container, error) {
	once.Do(func() {
		current, currentErr = New(cfg, mode, os.Stderr)
	})
	return current, currentErr
}

// New builds a container from cfg. Logs are written to logOut.
func New(cfg *config.Config, mode Mode, logOut io.Writer) (*Container, error) {
	logger := NewLogger(cfg.Logging, logOut)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: logger}

	conn, dialect, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.closers = append(c.closers, conn.Close)

	// Create repository adapters (secondary ports) sharing one store
	store := sqlite.NewStore(conn, dialect)
	targetRepo := sqlite.NewTargetRepository(store)
	memberRepo := sqlite.NewMemberRepository(store)
	recipientRepo := sqlite.NewRecipientRepository(store)
	watchRepo := sqlite.NewWatchRepository(store)

	locker, err := newLocker(cfg.Lock, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	if closer, ok := locker.(interface{ Close() error }); ok {
		c.closers = append(c.closers, closer.Close)
	}

	var transport secondary.Transport
	if cfg.Telegram.Token != "" {
		client, err := telegram.NewClient(telegram.ClientConfig{
			Token:       cfg.Telegram.Token,
			APIURL:      cfg.Telegram.APIURL,
			PollTimeout: cfg.Telegram.PollTimeout,
			Logger:      logger.With("component", "telegram"),
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create telegram client: %w", err)
		}
		transport = client
		c.Inbound = client
	} else {
		logger.Warn("telegram token not configured, notifications are logged only")
		transport = telegram.NewLogTransport(logger)
	}

	notifications := app.NewNotificationService(recipientRepo, watchRepo, transport, logger)
	c.Notifications = notifications

	var executor app.EffectExecutor = app.NewEffectExecutor(notifications)
	if mode == ModeServe {
		c.async = app.NewAsyncEffectExecutor(executor, cfg.Engine.DispatchWorkers, cfg.Engine.DispatchTimeout, logger)
		executor = c.async
	}

	c.Presence = app.NewPresenceService(
		store, targetRepo, memberRepo,
		mcping.NewProber(cfg.Probe.Timeout),
		locker, executor,
		app.PresenceConfig{ProbeTimeout: cfg.Probe.Timeout, FailureThreshold: cfg.Engine.FailureThreshold},
		logger,
	)
	c.Conversations = app.NewConversationService(store, recipientRepo, targetRepo, memberRepo, watchRepo, transport, loc, logger)

	return c, nil
}

// newLocker picks the etcd lock when endpoints are configured, otherwise
// an in-process key lock.
func newLocker(cfg config.LockConfig, logger *slog.Logger) (secondary.TickLocker, error) {
	if len(cfg.EtcdEndpoints) == 0 {
		return lock.NewKeyLock(), nil
	}
	locker, err := lock.NewEtcdLocker(cfg.EtcdEndpoints, cfg.Prefix, cfg.TTL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create tick lock: %w", err)
	}
	return locker, nil
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Targets converts configured targets to port specs.
func (c *Container) Targets() []primary.TargetSpec {
	specs := make([]primary.TargetSpec, len(c.Config.Targets))
	for i, t := range c.Config.Targets {
		specs[i] = primary.TargetSpec{Name: t.Name, Address: t.Address()}
	}
	return specs
}

// Ticker returns the periodic tick loop over the configured targets.
func (c *Container) Ticker() *scheduler.Ticker {
	return scheduler.NewTicker(c.Presence, c.Targets(), c.Config.Engine.Interval, c.Logger)
}

// Consumer returns the inbound chat loop, or nil when chat is disabled.
func (c *Container) Consumer() *scheduler.Consumer {
	if c.Inbound == nil {
		return nil
	}
	return scheduler.NewConsumer(c.Inbound, c.Conversations, c.Logger)
}

// AdminServer returns the admin HTTP server, or nil when no listen address is set.
func (c *Container) AdminServer() *adminhttp.Server {
	if c.Config.Admin.Listen == "" {
		return nil
	}
	return adminhttp.NewServer(c.Notifications, c.Config.Admin.Key, c.Logger)
}

// PresenceAdapter returns a new PresenceAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func (c *Container) PresenceAdapter() *cliadapter.PresenceAdapter {
	return c.PresenceAdapterWithOutput(os.Stdout)
}

// PresenceAdapterWithOutput returns a new PresenceAdapter writing to the given output.
func (c *Container) PresenceAdapterWithOutput(out io.Writer) *cliadapter.PresenceAdapter {
	return cliadapter.NewPresenceAdapter(c.Presence, out)
}

// NotificationAdapter returns a new NotificationAdapter writing to stdout.
func (c *Container) NotificationAdapter() *cliadapter.NotificationAdapter {
	return c.NotificationAdapterWithOutput(os.Stdout)
}

// NotificationAdapterWithOutput returns a new NotificationAdapter writing to the given output.
func (c *Container) NotificationAdapterWithOutput(out io.Writer) *cliadapter.NotificationAdapter {
	return cliadapter.NewNotificationAdapter(c.Notifications, out)
}

// Close drains queued effects, then releases the lock and the database.
func (c *Container) Close() error {
	if c.async != nil {
		c.async.Close()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
