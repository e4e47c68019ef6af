// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/beacon/internal/core/effects"
	"github.com/example/beacon/internal/ports/primary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place notification I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor runs notification effects inline through the dispatcher.
type DefaultEffectExecutor struct {
	notifier primary.NotificationService
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
func NewEffectExecutor(notifier primary.NotificationService) *DefaultEffectExecutor {
	return &DefaultEffectExecutor{notifier: notifier}
}

// Execute processes a slice of effects in sequence. Every effect is attempted;
// failures are joined.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	var errs []error
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			errs = append(errs, fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err))
		}
	}
	return errors.Join(errs...)
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.BroadcastEffect:
		filter := primary.RecipientFilter{}
		if typed.SubscribedOnly {
			subscribed := true
			filter.Subscribed = &subscribed
		}
		_, err := e.notifier.Broadcast(ctx, typed.Text, filter)
		return err
	case effects.WatchersEffect:
		_, err := e.notifier.NotifyWatchers(ctx, typed.MemberID, typed.Text)
		return err
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}
