// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting, but delegate
// business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/beacon/internal/ports/primary"
)

// PresenceAdapter translates CLI operations to PresenceService calls.
// It depends only on the PresenceService interface, enabling easy testing with mocks.
type PresenceAdapter struct {
	service primary.PresenceService
	out     io.Writer
}

// NewPresenceAdapter creates a new PresenceAdapter with the given service.
func NewPresenceAdapter(service primary.PresenceService, out io.Writer) *PresenceAdapter {
	return &PresenceAdapter{
		service: service,
		out:     out,
	}
}

// Tick runs one tick over targets and prints a line per target.
// Targets that ticked are printed even when others failed.
func (a *PresenceAdapter) Tick(ctx context.Context, targets []primary.TargetSpec) error {
	results, err := a.service.TickAll(ctx, targets)
	for _, r := range results {
		fmt.Fprintf(a.out, "✓ %s: %s", r.Target, outcomeLabel(r.Outcome))
		switch r.Outcome {
		case "debounced", "down", "already_down", "unknown":
			fmt.Fprintf(a.out, " (failures: %d)", r.FailCount)
		default:
			fmt.Fprintf(a.out, " (%d/%d online)", r.Population, r.Capacity)
		}
		if len(r.Joined) > 0 {
			fmt.Fprintf(a.out, " joined: %s", strings.Join(r.Joined, ", "))
		}
		if len(r.Left) > 0 {
			fmt.Fprintf(a.out, " left: %s", strings.Join(r.Left, ", "))
		}
		if r.Notifications > 0 {
			fmt.Fprintf(a.out, " [%d notifications]", r.Notifications)
		}
		fmt.Fprintln(a.out)
	}
	if err != nil {
		return fmt.Errorf("tick failed: %w", err)
	}
	return nil
}

// Status prints the persisted state of every target.
func (a *PresenceAdapter) Status(ctx context.Context) error {
	targets, err := a.service.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(a.out, "No targets seen yet")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-15s %-6s %-9s %-6s %s\n", "TARGET", "STATE", "ONLINE", "FAILS", "UPDATED")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, t := range targets {
		state := color.New(color.FgRed).Sprint("DOWN  ")
		if t.Up {
			state = color.New(color.FgGreen).Sprint("UP    ")
		}
		online := fmt.Sprintf("%d/%d", t.Population, t.Capacity)
		fmt.Fprintf(a.out, "%-15s %s %-9s %-6d %s\n", t.Name, state, online, t.FailCount, t.UpdatedAt)
		if len(t.Present) > 0 {
			fmt.Fprintf(a.out, "  players: %s\n", strings.Join(t.Present, ", "))
		}
	}
	fmt.Fprintln(a.out)

	return nil
}

func outcomeLabel(outcome string) string {
	switch outcome {
	case "recovered", "created":
		return color.New(color.FgGreen).Sprint(outcome)
	case "down":
		return color.New(color.FgRed).Sprint(outcome)
	case "debounced", "already_down", "unknown":
		return color.New(color.FgYellow).Sprint(outcome)
	default:
		return outcome
	}
}
