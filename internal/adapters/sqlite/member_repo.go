package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/beacon/internal/ports/secondary"
)

// MemberRepository implements secondary.MemberRepository.
type MemberRepository struct {
	store *Store
}

// NewMemberRepository creates a new member repository.
func NewMemberRepository(store *Store) *MemberRepository {
	return &MemberRepository{store: store}
}

const memberColumns = "id, target_id, external_id, name, present"

// Create persists a new member.
func (r *MemberRepository) Create(ctx context.Context, member *secondary.MemberRecord) error {
	_, err := r.store.exec(ctx,
		"INSERT INTO members (id, target_id, external_id, name, present) VALUES (?, ?, ?, ?, ?)",
		member.ID, member.TargetID, member.ExternalID, member.Name, member.Present,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s on %s: %w", member.ExternalID, member.TargetID, secondary.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}

	return nil
}

// GetByID retrieves a member by its ID.
func (r *MemberRepository) GetByID(ctx context.Context, id string) (*secondary.MemberRecord, error) {
	record := &secondary.MemberRecord{}
	err := r.store.queryRow(ctx,
		"SELECT "+memberColumns+" FROM members WHERE id = ?", id,
	).Scan(&record.ID, &record.TargetID, &record.ExternalID, &record.Name, &record.Present)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return record, nil
}

// ListByTarget retrieves the full roster of a target ordered by name.
func (r *MemberRepository) ListByTarget(ctx context.Context, targetID string) ([]*secondary.MemberRecord, error) {
	return r.list(ctx, "SELECT "+memberColumns+" FROM members WHERE target_id = ? ORDER BY name ASC", targetID)
}

// FindByName retrieves every member with the given display name.
func (r *MemberRepository) FindByName(ctx context.Context, name string) ([]*secondary.MemberRecord, error) {
	return r.list(ctx, "SELECT "+memberColumns+" FROM members WHERE name = ? ORDER BY id ASC", name)
}

func (r *MemberRepository) list(ctx context.Context, query string, args ...any) ([]*secondary.MemberRecord, error) {
	rows, err := r.store.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*secondary.MemberRecord
	for rows.Next() {
		record := &secondary.MemberRecord{}
		if err := rows.Scan(&record.ID, &record.TargetID, &record.ExternalID, &record.Name, &record.Present); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, record)
	}

	return members, rows.Err()
}

// SetPresent updates the presence flag.
func (r *MemberRepository) SetPresent(ctx context.Context, id string, present bool) error {
	result, err := r.store.exec(ctx,
		"UPDATE members SET present = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		present, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update member presence: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("member %s: %w", id, secondary.ErrNotFound)
	}

	return nil
}

// GetNextID returns the next available member ID.
func (r *MemberRepository) GetNextID(ctx context.Context) (string, error) {
	return r.store.nextID(ctx, "members", "MBR")
}

// Ensure MemberRepository implements the interface.
var _ secondary.MemberRepository = (*MemberRepository)(nil)
