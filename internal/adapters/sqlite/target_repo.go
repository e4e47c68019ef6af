package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/beacon/internal/ports/secondary"
)

// TargetRepository implements secondary.TargetRepository.
type TargetRepository struct {
	store *Store
}

// NewTargetRepository creates a new target repository.
func NewTargetRepository(store *Store) *TargetRepository {
	return &TargetRepository{store: store}
}

const targetColumns = "id, name, address, capacity, population, up, fail_count, created_at, updated_at"

// Create persists a new target.
func (r *TargetRepository) Create(ctx context.Context, target *secondary.TargetRecord) error {
	_, err := r.store.exec(ctx,
		"INSERT INTO targets (id, name, address, capacity, population, up, fail_count) VALUES (?, ?, ?, ?, ?, ?, ?)",
		target.ID, target.Name, target.Address, target.Capacity, target.Population, target.Up, target.FailCount,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("target %s: %w", target.Name, secondary.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create target: %w", err)
	}

	return nil
}

// GetByName retrieves a target by its configured name.
func (r *TargetRepository) GetByName(ctx context.Context, name string) (*secondary.TargetRecord, error) {
	record, err := scanTarget(r.store.queryRow(ctx,
		"SELECT "+targetColumns+" FROM targets WHERE name = ?", name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("target %s: %w", name, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}

	return record, nil
}

// List retrieves all targets ordered by name.
func (r *TargetRepository) List(ctx context.Context) ([]*secondary.TargetRecord, error) {
	rows, err := r.store.query(ctx, "SELECT "+targetColumns+" FROM targets ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []*secondary.TargetRecord
	for rows.Next() {
		record, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, record)
	}

	return targets, rows.Err()
}

// Update writes capacity, population, up flag and failure counter.
func (r *TargetRepository) Update(ctx context.Context, target *secondary.TargetRecord) error {
	result, err := r.store.exec(ctx,
		`UPDATE targets SET address = ?, capacity = ?, population = ?, up = ?, fail_count = ?,
			updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		target.Address, target.Capacity, target.Population, target.Up, target.FailCount, target.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update target: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("target %s: %w", target.ID, secondary.ErrNotFound)
	}

	return nil
}

// GetNextID returns the next available target ID.
func (r *TargetRepository) GetNextID(ctx context.Context) (string, error) {
	return r.store.nextID(ctx, "targets", "TGT")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*secondary.TargetRecord, error) {
	var createdAt, updatedAt sql.NullTime

	record := &secondary.TargetRecord{}
	err := row.Scan(&record.ID, &record.Name, &record.Address, &record.Capacity, &record.Population,
		&record.Up, &record.FailCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.CreatedAt = formatTime(createdAt.Time)
	record.UpdatedAt = formatTime(updatedAt.Time)
	return record, nil
}

// Ensure TargetRepository implements the interface.
var _ secondary.TargetRepository = (*TargetRepository)(nil)
