package presence

// MemberState is a persisted roster entry as seen by reconciliation.
type MemberState struct {
	ID         string
	ExternalID string
	Name       string
	Present    bool
}

// ObservedMember is a roster entry reported by a probe snapshot.
type ObservedMember struct {
	ExternalID string
	Name       string
}

// RosterDiff lists the persistence writes that bring the roster in line with a snapshot.
type RosterDiff struct {
	// Create holds members observed for the first time (insert as present).
	Create []ObservedMember
	// Rejoin holds known members that were absent and are observed again.
	Rejoin []MemberState
	// Leave holds members marked present that the snapshot no longer reports.
	Leave []MemberState
}

// Empty reports whether the diff contains no writes.
func (d RosterDiff) Empty() bool {
	return len(d.Create) == 0 && len(d.Rejoin) == 0 && len(d.Leave) == 0
}

// JoinedNames returns the display names of every joined member, created first.
func (d RosterDiff) JoinedNames() []string {
	names := make([]string, 0, len(d.Create)+len(d.Rejoin))
	for _, m := range d.Create {
		names = append(names, m.Name)
	}
	for _, m := range d.Rejoin {
		names = append(names, m.Name)
	}
	return names
}

// LeftNames returns the display names of every member that left.
func (d RosterDiff) LeftNames() []string {
	names := make([]string, 0, len(d.Leave))
	for _, m := range d.Leave {
		names = append(names, m.Name)
	}
	return names
}

// Reconcile diffs the persisted roster against a snapshot in O(n+m).
//
// complete must be false when the snapshot only carries a sample of the
// population; in that case nobody is marked as having left, since absence
// from a sample says nothing about presence.
func Reconcile(persisted []MemberState, observed []ObservedMember, complete bool) RosterDiff {
	known := make(map[string]MemberState, len(persisted))
	for _, m := range persisted {
		known[m.ExternalID] = m
	}

	var diff RosterDiff
	seen := make(map[string]struct{}, len(observed))
	for _, o := range observed {
		if _, dup := seen[o.ExternalID]; dup {
			continue
		}
		seen[o.ExternalID] = struct{}{}

		m, ok := known[o.ExternalID]
		switch {
		case !ok:
			diff.Create = append(diff.Create, o)
		case !m.Present:
			diff.Rejoin = append(diff.Rejoin, m)
		}
	}

	if !complete {
		return diff
	}
	for _, m := range persisted {
		if !m.Present {
			continue
		}
		if _, ok := seen[m.ExternalID]; !ok {
			diff.Leave = append(diff.Leave, m)
		}
	}
	return diff
}
