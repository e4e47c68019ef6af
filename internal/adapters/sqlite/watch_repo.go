package sqlite

import (
	"context"
	"fmt"

	"github.com/example/beacon/internal/ports/secondary"
)

// WatchRepository implements secondary.WatchRepository.
type WatchRepository struct {
	store *Store
}

// NewWatchRepository creates a new watch subscription repository.
func NewWatchRepository(store *Store) *WatchRepository {
	return &WatchRepository{store: store}
}

// Create persists a new watch. A duplicate (recipient, member) pair inserts
// nothing and returns ErrConflict; the statement itself never fails on it, so
// an enclosing postgres transaction stays usable.
func (r *WatchRepository) Create(ctx context.Context, watch *secondary.WatchRecord) error {
	result, err := r.store.exec(ctx,
		`INSERT INTO watch_subscriptions (id, recipient_id, member_id) VALUES (?, ?, ?)
			ON CONFLICT (recipient_id, member_id) DO NOTHING`,
		watch.ID, watch.RecipientID, watch.MemberID,
	)
	if err != nil {
		return fmt.Errorf("failed to create watch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create watch: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("watch %s -> %s: %w", watch.RecipientID, watch.MemberID, secondary.ErrConflict)
	}

	return nil
}

// Delete removes the watch for a (recipient, member) pair.
func (r *WatchRepository) Delete(ctx context.Context, recipientID, memberID string) error {
	result, err := r.store.exec(ctx,
		"DELETE FROM watch_subscriptions WHERE recipient_id = ? AND member_id = ?",
		recipientID, memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete watch: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("watch %s -> %s: %w", recipientID, memberID, secondary.ErrNotFound)
	}

	return nil
}

// ListWatchers retrieves every recipient watching a member.
func (r *WatchRepository) ListWatchers(ctx context.Context, memberID string) ([]*secondary.RecipientRecord, error) {
	rows, err := r.store.query(ctx,
		`SELECT r.id, r.handle, r.name, r.first_name, r.broadcast_subscribed, r.conversation_state, r.created_at, r.updated_at
			FROM watch_subscriptions w
			JOIN recipients r ON r.id = w.recipient_id
			WHERE w.member_id = ?
			ORDER BY r.id ASC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchers: %w", err)
	}
	defer rows.Close()

	return collectRecipients(rows)
}

// ListByRecipient retrieves the members a recipient watches, ordered by name.
func (r *WatchRepository) ListByRecipient(ctx context.Context, recipientID string) ([]*secondary.WatchedMember, error) {
	rows, err := r.store.query(ctx,
		`SELECT w.id, m.id, m.name, t.name, m.present
			FROM watch_subscriptions w
			JOIN members m ON m.id = w.member_id
			JOIN targets t ON t.id = m.target_id
			WHERE w.recipient_id = ?
			ORDER BY m.name ASC, t.name ASC`,
		recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list watches: %w", err)
	}
	defer rows.Close()

	var watched []*secondary.WatchedMember
	for rows.Next() {
		w := &secondary.WatchedMember{}
		if err := rows.Scan(&w.WatchID, &w.MemberID, &w.MemberName, &w.TargetName, &w.Present); err != nil {
			return nil, fmt.Errorf("failed to scan watch: %w", err)
		}
		watched = append(watched, w)
	}

	return watched, rows.Err()
}

// GetNextID returns the next available watch ID.
func (r *WatchRepository) GetNextID(ctx context.Context) (string, error) {
	return r.store.nextID(ctx, "watch_subscriptions", "WCH")
}

// Ensure WatchRepository implements the interface.
var _ secondary.WatchRepository = (*WatchRepository)(nil)
