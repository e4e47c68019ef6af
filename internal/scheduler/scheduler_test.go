package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/beacon/internal/ctxutil"
	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/ports/secondary"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingPresence struct {
	mu      sync.Mutex
	calls   int
	actor   string
	running int
	overlap bool
	err     error
	delay   time.Duration
}

func (p *countingPresence) Tick(ctx context.Context, target primary.TargetSpec) (*primary.TickResult, error) {
	return nil, errors.New("not used")
}

func (p *countingPresence) TickAll(ctx context.Context, targets []primary.TargetSpec) ([]*primary.TickResult, error) {
	p.mu.Lock()
	p.calls++
	p.running++
	if p.running > 1 {
		p.overlap = true
	}
	p.actor = ctxutil.ActorFromContext(ctx)
	p.mu.Unlock()

	time.Sleep(p.delay)

	p.mu.Lock()
	p.running--
	p.mu.Unlock()
	return nil, p.err
}

func (p *countingPresence) ListTargets(ctx context.Context) ([]*primary.TargetStatus, error) {
	return nil, nil
}

func (p *countingPresence) snapshot() (int, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, p.actor, p.overlap
}

func TestTicker_RunsUntilCancelled(t *testing.T) {
	presence := &countingPresence{err: errors.New("store down"), delay: 5 * time.Millisecond}
	ticker := NewTicker(presence, []primary.TargetSpec{{Name: "main"}}, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ticker.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if calls, _, _ := presence.snapshot(); calls >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	calls, actor, overlap := presence.snapshot()
	if calls < 3 {
		t.Errorf("expected ticks to continue after errors, got %d", calls)
	}
	if actor != ctxutil.ActorScheduler {
		t.Errorf("expected scheduler actor, got %q", actor)
	}
	if overlap {
		t.Error("ticks overlapped")
	}
}

type chanSource struct {
	ch chan secondary.InboundMessage
}

func (s *chanSource) Messages(ctx context.Context) <-chan secondary.InboundMessage {
	return s.ch
}

type recordingConversations struct {
	mu   sync.Mutex
	seen []string
}

func (c *recordingConversations) HandleMessage(ctx context.Context, msg primary.InboundMessage) (*primary.ConversationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, msg.Handle+":"+msg.Text)
	if msg.Text == "boom" {
		return nil, errors.New("store down")
	}
	return &primary.ConversationResult{}, nil
}

func TestConsumer_HandlesInOrder(t *testing.T) {
	source := &chanSource{ch: make(chan secondary.InboundMessage, 3)}
	source.ch <- secondary.InboundMessage{Handle: "1", Text: "/start"}
	source.ch <- secondary.InboundMessage{Handle: "2", Text: "boom"}
	source.ch <- secondary.InboundMessage{Handle: "1", Text: "Status"}
	close(source.ch)

	conversations := &recordingConversations{}
	consumer := NewConsumer(source, conversations, discardLogger())

	if err := consumer.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"1:/start", "2:boom", "1:Status"}
	if len(conversations.seen) != len(want) {
		t.Fatalf("expected %d messages, got %v", len(want), conversations.seen)
	}
	for i := range want {
		if conversations.seen[i] != want[i] {
			t.Errorf("message %d: got %s, want %s", i, conversations.seen[i], want[i])
		}
	}
}
