package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/ports/secondary"
)

func boolPtr(b bool) *bool { return &b }

func TestBroadcast_SubscribedOnly(t *testing.T) {
	f := newFixture()
	f.store.seedRecipient("RCP-001", "1001", "ana", true)
	f.store.seedRecipient("RCP-002", "1002", "bob", false)
	f.store.seedRecipient("RCP-003", "1003", "cy", true)
	svc := f.notificationService()

	report, err := svc.Broadcast(context.Background(), "hello", primary.RecipientFilter{Subscribed: boolPtr(true)})
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if report.Sent != 2 || report.Failed != 0 {
		t.Errorf("expected 2 sent, got %+v", report)
	}
	sent := f.transport.messages()
	if len(sent) != 2 || sent[0].Handle != "1001" || sent[1].Handle != "1003" {
		t.Errorf("unexpected deliveries: %+v", sent)
	}
}

func TestBroadcast_AllRecipients(t *testing.T) {
	f := newFixture()
	f.store.seedRecipient("RCP-001", "1001", "ana", true)
	f.store.seedRecipient("RCP-002", "1002", "bob", false)
	svc := f.notificationService()

	report, err := svc.Broadcast(context.Background(), "hello", primary.RecipientFilter{})
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if report.Sent != 2 {
		t.Errorf("expected 2 sent, got %+v", report)
	}
}

func TestBroadcast_PermanentFailureRetiresRecipientAndContinues(t *testing.T) {
	f := newFixture()
	f.store.seedTarget("TGT-001", "main", true, 0)
	f.store.seedMember("MBR-001", "TGT-001", "Steve", true)
	f.store.seedRecipient("RCP-001", "1001", "ana", true)
	f.store.seedRecipient("RCP-002", "1002", "bob", true)
	f.store.seedRecipient("RCP-003", "1003", "cy", true)
	f.store.seedWatch("WCH-001", "RCP-001", "MBR-001")
	f.store.seedWatch("WCH-002", "RCP-003", "MBR-001")
	f.transport.errs["1001"] = permanentFailure("1001")
	svc := f.notificationService()

	report, err := svc.Broadcast(context.Background(), "hello", primary.RecipientFilter{})
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if report.Sent != 2 || report.Failed != 1 || report.Retired != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if _, ok := f.store.recipientByHandle("1001"); ok {
		t.Error("expected blocked recipient to be deleted")
	}
	if n := f.store.watchCount(); n != 1 {
		t.Errorf("expected the retired recipient's watch removed, %d watches left", n)
	}
}

func TestBroadcast_TransientFailureKeepsRecipient(t *testing.T) {
	f := newFixture()
	f.store.seedRecipient("RCP-001", "1001", "ana", true)
	f.store.seedRecipient("RCP-002", "1002", "bob", true)
	f.transport.errs["1001"] = transientFailure("1001")
	svc := f.notificationService()

	report, err := svc.Broadcast(context.Background(), "hello", primary.RecipientFilter{})
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if report.Sent != 1 || report.Failed != 1 || report.Retired != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if _, ok := f.store.recipientByHandle("1001"); !ok {
		t.Error("transient failure must not delete the recipient")
	}
}

func TestBroadcast_UntypedErrorIsTransient(t *testing.T) {
	f := newFixture()
	f.store.seedRecipient("RCP-001", "1001", "ana", true)
	f.transport.errs["1001"] = errors.New("connection reset")
	svc := f.notificationService()

	report, _ := svc.Broadcast(context.Background(), "hello", primary.RecipientFilter{})
	if report.Retired != 0 {
		t.Errorf("expected no retirement, got %+v", report)
	}
	if _, ok := f.store.recipientByHandle("1001"); !ok {
		t.Error("expected recipient kept")
	}
}

func TestUnicast(t *testing.T) {
	f := newFixture()
	f.store.seedRecipient("RCP-001", "1001", "ana", false)
	svc := f.notificationService()

	report, err := svc.Unicast(context.Background(), "RCP-001", "just you")
	if err != nil {
		t.Fatalf("Unicast failed: %v", err)
	}
	if report.Sent != 1 || f.transport.last().Msg.Text != "just you" {
		t.Errorf("unexpected delivery: %+v %+v", report, f.transport.last())
	}

	if _, err := svc.Unicast(context.Background(), "RCP-999", "x"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSendToOne(t *testing.T) {
	f := newFixture()
	f.store.seedRecipient("RCP-001", "1001", "ana", false)
	svc := f.notificationService()

	report, err := svc.SendToOne(context.Background(), "hi ana", "ana")
	if err != nil {
		t.Fatalf("SendToOne failed: %v", err)
	}
	if report.Sent != 1 || f.transport.last().Handle != "1001" {
		t.Errorf("unexpected delivery: %+v", f.transport.last())
	}

	_, err = svc.SendToOne(context.Background(), "hi", "nobody")
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNotifyWatchers_IgnoresBroadcastFlag(t *testing.T) {
	f := newFixture()
	f.store.seedTarget("TGT-001", "main", true, 0)
	f.store.seedMember("MBR-001", "TGT-001", "Steve", true)
	f.store.seedRecipient("RCP-001", "1001", "ana", false)
	f.store.seedRecipient("RCP-002", "1002", "bob", true)
	f.store.seedWatch("WCH-001", "RCP-001", "MBR-001")
	svc := f.notificationService()

	report, err := svc.NotifyWatchers(context.Background(), "MBR-001", "Player Steve joined main!")
	if err != nil {
		t.Fatalf("NotifyWatchers failed: %v", err)
	}
	if report.Sent != 1 || f.transport.last().Handle != "1001" {
		t.Errorf("expected only the unsubscribed watcher, got %+v", f.transport.messages())
	}
}

func TestListRecipients(t *testing.T) {
	f := newFixture()
	f.store.seedRecipient("RCP-001", "1001", "ana", true)
	f.store.seedRecipient("RCP-002", "1002", "bob", false)
	svc := f.notificationService()

	tests := []struct {
		name   string
		filter primary.RecipientFilter
		want   int
	}{
		{"all", primary.RecipientFilter{}, 2},
		{"subscribed", primary.RecipientFilter{Subscribed: boolPtr(true)}, 1},
		{"unsubscribed", primary.RecipientFilter{Subscribed: boolPtr(false)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListRecipients(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListRecipients failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d recipients, got %d", tt.want, len(got))
			}
		})
	}
}
