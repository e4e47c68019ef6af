// Package scheduler drives the presence engine on a fixed interval and feeds
// inbound chat messages to the conversation service.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/beacon/internal/ctxutil"
	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/ports/secondary"
)

// Ticker runs one TickAll per interval. Ticks never overlap: the loop is
// sequential and a slow tick delays the next one instead of stacking.
type Ticker struct {
	presence primary.PresenceService
	targets  []primary.TargetSpec
	interval time.Duration
	logger   *slog.Logger
}

// NewTicker creates a Ticker over the configured targets.
func NewTicker(presence primary.PresenceService, targets []primary.TargetSpec, interval time.Duration, logger *slog.Logger) *Ticker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{
		presence: presence,
		targets:  targets,
		interval: interval,
		logger:   logger,
	}
}

// Run ticks immediately and then every interval until ctx is done.
// Tick errors are logged and retried on the next interval.
func (t *Ticker) Run(ctx context.Context) error {
	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorScheduler)
	t.logger.Info("scheduler started", "targets", len(t.targets), "interval", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		t.tick(ctx)

		select {
		case <-ctx.Done():
			t.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	if _, err := t.presence.TickAll(ctx, t.targets); err != nil && ctx.Err() == nil {
		t.logger.Error("tick failed", "error", err)
	}
}

// Consumer hands inbound messages to the conversation service one at a time,
// in arrival order.
type Consumer struct {
	source        secondary.InboundSource
	conversations primary.ConversationService
	logger        *slog.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(source secondary.InboundSource, conversations primary.ConversationService, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		source:        source,
		conversations: conversations,
		logger:        logger,
	}
}

// Run consumes messages until the source channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("chat consumer started")
	for msg := range c.source.Messages(ctx) {
		_, err := c.conversations.HandleMessage(ctx, primary.InboundMessage{
			Handle:    msg.Handle,
			Username:  msg.Username,
			FirstName: msg.FirstName,
			Text:      msg.Text,
		})
		if err != nil {
			c.logger.Error("failed to handle message", "handle", msg.Handle, "error", err)
		}
	}
	c.logger.Info("chat consumer stopped")
	return nil
}
