// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces the CLI, scheduler and chat consumer call into.
package primary

import "context"

// PresenceService defines the primary port for liveness and roster tracking.
type PresenceService interface {
	// Tick probes one target and applies the observed state.
	// Probe failures feed the debounce counter and are never returned;
	// only store failures are.
	Tick(ctx context.Context, target TargetSpec) (*TickResult, error)

	// TickAll ticks every target in order. Store failures of individual
	// targets are joined into the returned error; other targets still tick.
	TickAll(ctx context.Context, targets []TargetSpec) ([]*TickResult, error)

	// ListTargets retrieves the persisted state of every target with its
	// present members.
	ListTargets(ctx context.Context) ([]*TargetStatus, error)
}

// TargetSpec identifies a configured target.
type TargetSpec struct {
	Name    string
	Address string
}

// TickResult reports what a single tick did.
type TickResult struct {
	Target     string
	Outcome    string
	FailCount  int
	Population int
	Capacity   int
	Joined     []string
	Left       []string
	// Notifications is the number of notification effects queued by the tick.
	Notifications int
}

// TargetStatus is a target's persisted state at the port boundary.
type TargetStatus struct {
	ID         string
	Name       string
	Address    string
	Up         bool
	FailCount  int
	Population int
	Capacity   int
	Present    []string
	UpdatedAt  string
}
