package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/beacon/internal/adapters/sqlite"
	"github.com/example/beacon/internal/ports/secondary"
)

func TestStore_WithinTx_Commit(t *testing.T) {
	testDB, store := setupTestDB(t)
	targets := sqlite.NewTargetRepository(store)
	members := sqlite.NewMemberRepository(store)

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := targets.Create(ctx, &secondary.TargetRecord{ID: "TGT-001", Name: "alpha", Up: true}); err != nil {
			return err
		}
		return members.Create(ctx, &secondary.MemberRecord{ID: "MBR-001", TargetID: "TGT-001", ExternalID: "u1", Name: "Steve", Present: true})
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	if n := countRows(t, testDB, "members"); n != 1 {
		t.Errorf("expected committed member, got %d rows", n)
	}
}

func TestStore_WithinTx_RollbackOnError(t *testing.T) {
	testDB, store := setupTestDB(t)
	targets := sqlite.NewTargetRepository(store)
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := targets.Create(ctx, &secondary.TargetRecord{ID: "TGT-001", Name: "alpha"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if n := countRows(t, testDB, "targets"); n != 0 {
		t.Errorf("expected rollback, got %d targets", n)
	}
}

func TestStore_WithinTx_NestedJoinsOuter(t *testing.T) {
	testDB, store := setupTestDB(t)
	targets := sqlite.NewTargetRepository(store)
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		inner := store.WithinTx(ctx, func(ctx context.Context) error {
			return targets.Create(ctx, &secondary.TargetRecord{ID: "TGT-001", Name: "alpha"})
		})
		if inner != nil {
			return inner
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if n := countRows(t, testDB, "targets"); n != 0 {
		t.Errorf("inner write should roll back with the outer transaction, got %d targets", n)
	}
}

func TestStore_NextIDInsideTransaction(t *testing.T) {
	testDB, store := setupTestDB(t)
	seedTarget(t, testDB, "TGT-001", "alpha", true)
	members := sqlite.NewMemberRepository(store)

	var ids []string
	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		for _, name := range []string{"Steve", "Alex"} {
			id, err := members.GetNextID(ctx)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			if err := members.Create(ctx, &secondary.MemberRecord{ID: id, TargetID: "TGT-001", ExternalID: "uuid-" + name, Name: name, Present: true}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	if len(ids) != 2 || ids[0] != "MBR-001" || ids[1] != "MBR-002" {
		t.Errorf("expected sequential IDs within one transaction, got %v", ids)
	}
}
