// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import "context"

// Transactor runs a unit of work inside a single database transaction.
// Repositories called with the ctx handed to fn participate in that transaction.
type Transactor interface {
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	// Nested calls join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TargetRepository defines the secondary port for monitored target persistence.
type TargetRepository interface {
	// Create persists a new target. Returns ErrConflict on a name collision.
	Create(ctx context.Context, target *TargetRecord) error

	// GetByName retrieves a target by its configured name. Returns ErrNotFound.
	GetByName(ctx context.Context, name string) (*TargetRecord, error)

	// List retrieves all targets ordered by name.
	List(ctx context.Context) ([]*TargetRecord, error)

	// Update writes capacity, population, up flag and failure counter.
	Update(ctx context.Context, target *TargetRecord) error

	// GetNextID returns the next available target ID.
	GetNextID(ctx context.Context) (string, error)
}

// TargetRecord represents a target as stored in persistence.
type TargetRecord struct {
	ID         string
	Name       string
	Address    string
	Capacity   int
	Population int
	Up         bool
	FailCount  int
	CreatedAt  string
	UpdatedAt  string
}

// MemberRepository defines the secondary port for roster persistence.
// Members are never deleted; absence is recorded with Present=false.
type MemberRepository interface {
	// Create persists a new member. Returns ErrConflict if the external ID
	// is already known for the target.
	Create(ctx context.Context, member *MemberRecord) error

	// GetByID retrieves a member by its ID.
	GetByID(ctx context.Context, id string) (*MemberRecord, error)

	// ListByTarget retrieves the full roster of a target, present or not.
	ListByTarget(ctx context.Context, targetID string) ([]*MemberRecord, error)

	// FindByName retrieves every member with the given display name, across targets.
	FindByName(ctx context.Context, name string) ([]*MemberRecord, error)

	// SetPresent updates the presence flag.
	SetPresent(ctx context.Context, id string, present bool) error

	// GetNextID returns the next available member ID.
	GetNextID(ctx context.Context) (string, error)
}

// MemberRecord represents a member as stored in persistence.
type MemberRecord struct {
	ID         string
	TargetID   string
	ExternalID string
	Name       string
	Present    bool
}

// RecipientRepository defines the secondary port for recipient persistence.
type RecipientRepository interface {
	// Create persists a new recipient. Returns ErrConflict on a duplicate handle.
	Create(ctx context.Context, recipient *RecipientRecord) error

	// GetByID retrieves a recipient by its ID.
	GetByID(ctx context.Context, id string) (*RecipientRecord, error)

	// GetByHandle retrieves a recipient by its transport handle.
	GetByHandle(ctx context.Context, handle string) (*RecipientRecord, error)

	// GetByName retrieves a recipient by its display name (chat username).
	GetByName(ctx context.Context, name string) (*RecipientRecord, error)

	// List retrieves recipients matching the given filters.
	List(ctx context.Context, filters RecipientFilters) ([]*RecipientRecord, error)

	// SetBroadcastSubscribed updates the broadcast-subscription flag.
	SetBroadcastSubscribed(ctx context.Context, id string, subscribed bool) error

	// SetConversationState updates the persisted conversation state.
	SetConversationState(ctx context.Context, id, state string) error

	// Delete removes a recipient and all of its watch subscriptions.
	Delete(ctx context.Context, id string) error

	// GetNextID returns the next available recipient ID.
	GetNextID(ctx context.Context) (string, error)
}

// RecipientRecord represents a recipient as stored in persistence.
type RecipientRecord struct {
	ID                  string
	Handle              string
	Name                string // Empty string means null
	FirstName           string // Empty string means null
	BroadcastSubscribed bool
	ConversationState   string
	CreatedAt           string
	UpdatedAt           string
}

// RecipientFilters contains filter options for querying recipients.
type RecipientFilters struct {
	// Subscribed restricts the result to the given broadcast flag when non-nil.
	Subscribed *bool
}

// WatchRepository defines the secondary port for per-member watch subscriptions.
type WatchRepository interface {
	// Create persists a new watch. Returns ErrConflict if the
	// (recipient, member) pair is already watched.
	Create(ctx context.Context, watch *WatchRecord) error

	// Delete removes the watch for a (recipient, member) pair. Returns ErrNotFound.
	Delete(ctx context.Context, recipientID, memberID string) error

	// ListWatchers retrieves every recipient watching a member.
	ListWatchers(ctx context.Context, memberID string) ([]*RecipientRecord, error)

	// ListByRecipient retrieves the members a recipient watches.
	ListByRecipient(ctx context.Context, recipientID string) ([]*WatchedMember, error)

	// GetNextID returns the next available watch ID.
	GetNextID(ctx context.Context) (string, error)
}

// WatchRecord represents a watch subscription as stored in persistence.
type WatchRecord struct {
	ID          string
	RecipientID string
	MemberID    string
	CreatedAt   string
}

// WatchedMember is a watched member joined with its target for display.
type WatchedMember struct {
	WatchID    string
	MemberID   string
	MemberName string
	TargetName string
	Present    bool
}
