package secondary

import "context"

// Prober defines the secondary port for liveness probing of a target.
// Implementations make a single attempt and honor the context deadline;
// every failure is returned as a *ProbeError.
type Prober interface {
	Probe(ctx context.Context, address string) (*Snapshot, error)
}

// Snapshot is the normalized result of a successful probe.
type Snapshot struct {
	Population int
	Capacity   int
	// Members may be a truncated sample of the roster.
	Members []SnapshotMember
}

// SnapshotMember identifies one participant reported by the probe.
type SnapshotMember struct {
	ID   string
	Name string
}

// Complete reports whether Members covers the whole population.
func (s *Snapshot) Complete() bool {
	return s.Population <= len(s.Members)
}
