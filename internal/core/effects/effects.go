// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
//
// A tick computes its notification effects inside the state transaction and
// hands them to an executor only after commit.
package effects

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// BroadcastEffect fans a message out to recipients.
type BroadcastEffect struct {
	Text string
	// SubscribedOnly restricts delivery to broadcast-subscribed recipients.
	SubscribedOnly bool
}

func (e BroadcastEffect) EffectType() string { return "broadcast" }

// WatchersEffect notifies every recipient watching a member.
type WatchersEffect struct {
	MemberID string
	Text     string
}

func (e WatchersEffect) EffectType() string { return "watchers" }
