package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/beacon/internal/ports/secondary"
)

// RecipientRepository implements secondary.RecipientRepository.
type RecipientRepository struct {
	store *Store
}

// NewRecipientRepository creates a new recipient repository.
func NewRecipientRepository(store *Store) *RecipientRepository {
	return &RecipientRepository{store: store}
}

const recipientColumns = "id, handle, name, first_name, broadcast_subscribed, conversation_state, created_at, updated_at"

// Create persists a new recipient.
func (r *RecipientRepository) Create(ctx context.Context, recipient *secondary.RecipientRecord) error {
	state := recipient.ConversationState
	if state == "" {
		state = "NONE"
	}

	_, err := r.store.exec(ctx,
		`INSERT INTO recipients (id, handle, name, first_name, broadcast_subscribed, conversation_state)
			VALUES (?, ?, ?, ?, ?, ?)`,
		recipient.ID, recipient.Handle, nullString(recipient.Name), nullString(recipient.FirstName),
		recipient.BroadcastSubscribed, state,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("recipient %s: %w", recipient.Handle, secondary.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}

	recipient.ConversationState = state
	return nil
}

// GetByID retrieves a recipient by its ID.
func (r *RecipientRepository) GetByID(ctx context.Context, id string) (*secondary.RecipientRecord, error) {
	return r.get(ctx, "id", id)
}

// GetByHandle retrieves a recipient by its transport handle.
func (r *RecipientRepository) GetByHandle(ctx context.Context, handle string) (*secondary.RecipientRecord, error) {
	return r.get(ctx, "handle", handle)
}

// GetByName retrieves the oldest recipient with the given display name.
func (r *RecipientRepository) GetByName(ctx context.Context, name string) (*secondary.RecipientRecord, error) {
	return r.get(ctx, "name", name)
}

func (r *RecipientRepository) get(ctx context.Context, column, value string) (*secondary.RecipientRecord, error) {
	record, err := scanRecipient(r.store.queryRow(ctx,
		"SELECT "+recipientColumns+" FROM recipients WHERE "+column+" = ? ORDER BY id ASC LIMIT 1", value,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recipient %s: %w", value, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}

	return record, nil
}

// List retrieves recipients matching the given filters.
func (r *RecipientRepository) List(ctx context.Context, filters secondary.RecipientFilters) ([]*secondary.RecipientRecord, error) {
	query := "SELECT " + recipientColumns + " FROM recipients"
	var args []any

	if filters.Subscribed != nil {
		query += " WHERE broadcast_subscribed = ?"
		args = append(args, *filters.Subscribed)
	}
	query += " ORDER BY id ASC"

	rows, err := r.store.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	return collectRecipients(rows)
}

// SetBroadcastSubscribed updates the broadcast-subscription flag.
func (r *RecipientRepository) SetBroadcastSubscribed(ctx context.Context, id string, subscribed bool) error {
	return r.update(ctx, "broadcast_subscribed", id, subscribed)
}

// SetConversationState updates the persisted conversation state.
func (r *RecipientRepository) SetConversationState(ctx context.Context, id, state string) error {
	return r.update(ctx, "conversation_state", id, state)
}

func (r *RecipientRepository) update(ctx context.Context, column, id string, value any) error {
	result, err := r.store.exec(ctx,
		"UPDATE recipients SET "+column+" = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		value, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update recipient %s: %w", column, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("recipient %s: %w", id, secondary.ErrNotFound)
	}

	return nil
}

// Delete removes a recipient and all of its watch subscriptions in one
// transaction. Watches are deleted explicitly so the result does not depend
// on foreign key enforcement.
func (r *RecipientRepository) Delete(ctx context.Context, id string) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.store.exec(ctx, "DELETE FROM watch_subscriptions WHERE recipient_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete recipient watches: %w", err)
		}

		result, err := r.store.exec(ctx, "DELETE FROM recipients WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete recipient: %w", err)
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return fmt.Errorf("recipient %s: %w", id, secondary.ErrNotFound)
		}
		return nil
	})
}

// GetNextID returns the next available recipient ID.
func (r *RecipientRepository) GetNextID(ctx context.Context) (string, error) {
	return r.store.nextID(ctx, "recipients", "RCP")
}

func scanRecipient(row rowScanner) (*secondary.RecipientRecord, error) {
	var (
		name      sql.NullString
		firstName sql.NullString
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)

	record := &secondary.RecipientRecord{}
	err := row.Scan(&record.ID, &record.Handle, &name, &firstName, &record.BroadcastSubscribed,
		&record.ConversationState, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.Name = name.String
	record.FirstName = firstName.String
	record.CreatedAt = formatTime(createdAt.Time)
	record.UpdatedAt = formatTime(updatedAt.Time)
	return record, nil
}

func collectRecipients(rows *sql.Rows) ([]*secondary.RecipientRecord, error) {
	var recipients []*secondary.RecipientRecord
	for rows.Next() {
		record, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, record)
	}
	return recipients, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Ensure RecipientRepository implements the interface.
var _ secondary.RecipientRepository = (*RecipientRepository)(nil)
