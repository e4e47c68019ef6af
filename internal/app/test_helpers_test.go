package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/example/beacon/internal/core/effects"
	"github.com/example/beacon/internal/ports/secondary"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// fakeStore: in-memory persistence with transaction rollback
// ============================================================================

type txMarker struct{}

type fakeStore struct {
	mu         sync.Mutex
	targets    map[string]secondary.TargetRecord
	members    map[string]secondary.MemberRecord
	recipients map[string]secondary.RecipientRecord
	watches    map[string]secondary.WatchRecord
	seq        map[string]int

	// getTargetErr is returned by TargetRepository.GetByName when set.
	getTargetErr error
	txCount      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		targets:    make(map[string]secondary.TargetRecord),
		members:    make(map[string]secondary.MemberRecord),
		recipients: make(map[string]secondary.RecipientRecord),
		watches:    make(map[string]secondary.WatchRecord),
		seq:        make(map[string]int),
	}
}

var _ secondary.Transactor = (*fakeStore)(nil)

func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	s.txCount++
	saved := s.cloneLocked()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.mu.Lock()
		s.targets, s.members, s.recipients, s.watches = saved.targets, saved.members, saved.recipients, saved.watches
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *fakeStore) cloneLocked() *fakeStore {
	c := newFakeStore()
	for k, v := range s.targets {
		c.targets[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.recipients {
		c.recipients[k] = v
	}
	for k, v := range s.watches {
		c.watches[k] = v
	}
	return c
}

func (s *fakeStore) nextID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[prefix]++
	return fmt.Sprintf("%s-%03d", prefix, s.seq[prefix])
}

// seed helpers

func (s *fakeStore) seedTarget(id, name string, up bool, failCount int) {
	s.targets[id] = secondary.TargetRecord{ID: id, Name: name, Address: name + ":25565", Up: up, FailCount: failCount, UpdatedAt: "2026-10-18T10:00:00Z"}
	s.seq["TGT"]++
}

func (s *fakeStore) seedMember(id, targetID, name string, present bool) {
	s.members[id] = secondary.MemberRecord{ID: id, TargetID: targetID, ExternalID: "uuid-" + name, Name: name, Present: present}
	s.seq["MBR"]++
}

func (s *fakeStore) seedRecipient(id, handle, name string, subscribed bool) {
	s.recipients[id] = secondary.RecipientRecord{ID: id, Handle: handle, Name: name, BroadcastSubscribed: subscribed, ConversationState: "NONE"}
	s.seq["RCP"]++
}

func (s *fakeStore) seedWatch(id, recipientID, memberID string) {
	s.watches[id] = secondary.WatchRecord{ID: id, RecipientID: recipientID, MemberID: memberID}
	s.seq["WCH"]++
}

func (s *fakeStore) target(name string) (secondary.TargetRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets {
		if t.Name == name {
			return t, true
		}
	}
	return secondary.TargetRecord{}, false
}

func (s *fakeStore) member(name string) (secondary.MemberRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.Name == name {
			return m, true
		}
	}
	return secondary.MemberRecord{}, false
}

func (s *fakeStore) recipientByHandle(handle string) (secondary.RecipientRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if r.Handle == handle {
			return r, true
		}
	}
	return secondary.RecipientRecord{}, false
}

func (s *fakeStore) watchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// ============================================================================
// Repositories over fakeStore
// ============================================================================

type fakeTargetRepo struct{ s *fakeStore }

var _ secondary.TargetRepository = (*fakeTargetRepo)(nil)

func (r *fakeTargetRepo) Create(ctx context.Context, t *secondary.TargetRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.targets {
		if existing.Name == t.Name {
			return secondary.ErrConflict
		}
	}
	rec := *t
	rec.UpdatedAt = "2026-10-18T10:00:00Z"
	r.s.targets[t.ID] = rec
	return nil
}

func (r *fakeTargetRepo) GetByName(ctx context.Context, name string) (*secondary.TargetRecord, error) {
	if r.s.getTargetErr != nil {
		return nil, r.s.getTargetErr
	}
	t, ok := r.s.target(name)
	if !ok {
		return nil, fmt.Errorf("target %s: %w", name, secondary.ErrNotFound)
	}
	return &t, nil
}

func (r *fakeTargetRepo) List(ctx context.Context) ([]*secondary.TargetRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*secondary.TargetRecord, 0, len(r.s.targets))
	for _, t := range r.s.targets {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeTargetRepo) Update(ctx context.Context, t *secondary.TargetRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.targets[t.ID]
	if !ok {
		return secondary.ErrNotFound
	}
	existing.Capacity = t.Capacity
	existing.Population = t.Population
	existing.Up = t.Up
	existing.FailCount = t.FailCount
	r.s.targets[t.ID] = existing
	return nil
}

func (r *fakeTargetRepo) GetNextID(ctx context.Context) (string, error) {
	return r.s.nextID("TGT"), nil
}

type fakeMemberRepo struct{ s *fakeStore }

var _ secondary.MemberRepository = (*fakeMemberRepo)(nil)

func (r *fakeMemberRepo) Create(ctx context.Context, m *secondary.MemberRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.members {
		if existing.TargetID == m.TargetID && existing.ExternalID == m.ExternalID {
			return secondary.ErrConflict
		}
	}
	r.s.members[m.ID] = *m
	return nil
}

func (r *fakeMemberRepo) GetByID(ctx context.Context, id string) (*secondary.MemberRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return nil, secondary.ErrNotFound
	}
	return &m, nil
}

func (r *fakeMemberRepo) ListByTarget(ctx context.Context, targetID string) ([]*secondary.MemberRecord, error) {
	return r.filter(func(m secondary.MemberRecord) bool { return m.TargetID == targetID }), nil
}

func (r *fakeMemberRepo) FindByName(ctx context.Context, name string) ([]*secondary.MemberRecord, error) {
	return r.filter(func(m secondary.MemberRecord) bool { return m.Name == name }), nil
}

func (r *fakeMemberRepo) filter(keep func(secondary.MemberRecord) bool) []*secondary.MemberRecord {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*secondary.MemberRecord
	for _, m := range r.s.members {
		if keep(m) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeMemberRepo) SetPresent(ctx context.Context, id string, present bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return secondary.ErrNotFound
	}
	m.Present = present
	r.s.members[id] = m
	return nil
}

func (r *fakeMemberRepo) GetNextID(ctx context.Context) (string, error) {
	return r.s.nextID("MBR"), nil
}

type fakeRecipientRepo struct{ s *fakeStore }

var _ secondary.RecipientRepository = (*fakeRecipientRepo)(nil)

func (r *fakeRecipientRepo) Create(ctx context.Context, rec *secondary.RecipientRecord) error {
	if _, ok := r.s.recipientByHandle(rec.Handle); ok {
		return secondary.ErrConflict
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.recipients[rec.ID] = *rec
	return nil
}

func (r *fakeRecipientRepo) GetByID(ctx context.Context, id string) (*secondary.RecipientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.recipients[id]
	if !ok {
		return nil, fmt.Errorf("recipient %s: %w", id, secondary.ErrNotFound)
	}
	return &rec, nil
}

func (r *fakeRecipientRepo) GetByHandle(ctx context.Context, handle string) (*secondary.RecipientRecord, error) {
	rec, ok := r.s.recipientByHandle(handle)
	if !ok {
		return nil, fmt.Errorf("recipient %s: %w", handle, secondary.ErrNotFound)
	}
	return &rec, nil
}

func (r *fakeRecipientRepo) GetByName(ctx context.Context, name string) (*secondary.RecipientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.recipients {
		if rec.Name == name {
			rec := rec
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("recipient %s: %w", name, secondary.ErrNotFound)
}

func (r *fakeRecipientRepo) List(ctx context.Context, filters secondary.RecipientFilters) ([]*secondary.RecipientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*secondary.RecipientRecord
	for _, rec := range r.s.recipients {
		if filters.Subscribed != nil && rec.BroadcastSubscribed != *filters.Subscribed {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRecipientRepo) SetBroadcastSubscribed(ctx context.Context, id string, subscribed bool) error {
	return r.update(id, func(rec *secondary.RecipientRecord) { rec.BroadcastSubscribed = subscribed })
}

func (r *fakeRecipientRepo) SetConversationState(ctx context.Context, id, state string) error {
	return r.update(id, func(rec *secondary.RecipientRecord) { rec.ConversationState = state })
}

func (r *fakeRecipientRepo) update(id string, fn func(*secondary.RecipientRecord)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.recipients[id]
	if !ok {
		return secondary.ErrNotFound
	}
	fn(&rec)
	r.s.recipients[id] = rec
	return nil
}

func (r *fakeRecipientRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.recipients[id]; !ok {
		return secondary.ErrNotFound
	}
	delete(r.s.recipients, id)
	for wid, w := range r.s.watches {
		if w.RecipientID == id {
			delete(r.s.watches, wid)
		}
	}
	return nil
}

func (r *fakeRecipientRepo) GetNextID(ctx context.Context) (string, error) {
	return r.s.nextID("RCP"), nil
}

type fakeWatchRepo struct{ s *fakeStore }

var _ secondary.WatchRepository = (*fakeWatchRepo)(nil)

func (r *fakeWatchRepo) Create(ctx context.Context, w *secondary.WatchRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.watches {
		if existing.RecipientID == w.RecipientID && existing.MemberID == w.MemberID {
			return secondary.ErrConflict
		}
	}
	r.s.watches[w.ID] = *w
	return nil
}

func (r *fakeWatchRepo) Delete(ctx context.Context, recipientID, memberID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, w := range r.s.watches {
		if w.RecipientID == recipientID && w.MemberID == memberID {
			delete(r.s.watches, id)
			return nil
		}
	}
	return secondary.ErrNotFound
}

func (r *fakeWatchRepo) ListWatchers(ctx context.Context, memberID string) ([]*secondary.RecipientRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*secondary.RecipientRecord
	for _, w := range r.s.watches {
		if w.MemberID != memberID {
			continue
		}
		if rec, ok := r.s.recipients[w.RecipientID]; ok {
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeWatchRepo) ListByRecipient(ctx context.Context, recipientID string) ([]*secondary.WatchedMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*secondary.WatchedMember
	for _, w := range r.s.watches {
		if w.RecipientID != recipientID {
			continue
		}
		m := r.s.members[w.MemberID]
		out = append(out, &secondary.WatchedMember{
			WatchID:    w.ID,
			MemberID:   m.ID,
			MemberName: m.Name,
			TargetName: r.s.targets[m.TargetID].Name,
			Present:    m.Present,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberName < out[j].MemberName })
	return out, nil
}

func (r *fakeWatchRepo) GetNextID(ctx context.Context) (string, error) {
	return r.s.nextID("WCH"), nil
}

// ============================================================================
// Prober, transport, locker and executor fakes
// ============================================================================

type fakeProber struct {
	mu       sync.Mutex
	snapshot *secondary.Snapshot
	err      error
	calls    int
}

var _ secondary.Prober = (*fakeProber)(nil)

func (p *fakeProber) Probe(ctx context.Context, address string) (*secondary.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err := ctx.Err(); err != nil {
		return nil, &secondary.ProbeError{Address: address, Err: err}
	}
	if p.err != nil {
		return nil, &secondary.ProbeError{Address: address, Err: p.err}
	}
	return p.snapshot, nil
}

func (p *fakeProber) succeed(population, capacity int, names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	members := make([]secondary.SnapshotMember, len(names))
	for i, n := range names {
		members[i] = secondary.SnapshotMember{ID: "uuid-" + n, Name: n}
	}
	p.snapshot = &secondary.Snapshot{Population: population, Capacity: capacity, Members: members}
	p.err = nil
}

func (p *fakeProber) fail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = nil
	p.err = errors.New("connection refused")
}

type sentMessage struct {
	Handle string
	Msg    secondary.OutboundMessage
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMessage
	// errs maps a handle to the error its sends fail with.
	errs map[string]error
}

var _ secondary.Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{errs: make(map[string]error)}
}

func (t *fakeTransport) Send(ctx context.Context, handle string, msg secondary.OutboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err, ok := t.errs[handle]; ok {
		return err
	}
	t.sent = append(t.sent, sentMessage{Handle: handle, Msg: msg})
	return nil
}

func (t *fakeTransport) messages() []sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentMessage(nil), t.sent...)
}

func (t *fakeTransport) last() sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return sentMessage{}
	}
	return t.sent[len(t.sent)-1]
}

func permanentFailure(handle string) error {
	return &secondary.DeliveryError{Handle: handle, Permanent: true, Err: errors.New("forbidden: bot was blocked by the user")}
}

func transientFailure(handle string) error {
	return &secondary.DeliveryError{Handle: handle, Err: errors.New("too many requests")}
}

type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]int
	err   error
}

var _ secondary.TickLocker = (*fakeLocker)(nil)

func (l *fakeLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]int)
	}
	l.locks[key]++
	return func() {}, nil
}

type recordingExecutor struct {
	mu      sync.Mutex
	batches [][]effects.Effect
}

var _ EffectExecutor = (*recordingExecutor)(nil)

func (e *recordingExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, effs)
	return nil
}

func (e *recordingExecutor) all() []effects.Effect {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []effects.Effect
	for _, b := range e.batches {
		out = append(out, b...)
	}
	return out
}

// ============================================================================
// Service fixtures
// ============================================================================

type fixture struct {
	store      *fakeStore
	targets    *fakeTargetRepo
	members    *fakeMemberRepo
	recipients *fakeRecipientRepo
	watches    *fakeWatchRepo
	prober     *fakeProber
	transport  *fakeTransport
	locker     *fakeLocker
}

func newFixture() *fixture {
	store := newFakeStore()
	return &fixture{
		store:      store,
		targets:    &fakeTargetRepo{s: store},
		members:    &fakeMemberRepo{s: store},
		recipients: &fakeRecipientRepo{s: store},
		watches:    &fakeWatchRepo{s: store},
		prober:     &fakeProber{},
		transport:  newFakeTransport(),
		locker:     &fakeLocker{},
	}
}

func (f *fixture) notificationService() *NotificationServiceImpl {
	return NewNotificationService(f.recipients, f.watches, f.transport, discardLogger())
}

func (f *fixture) presenceService(executor EffectExecutor, threshold int) *PresenceServiceImpl {
	return NewPresenceService(f.store, f.targets, f.members, f.prober, f.locker, executor,
		PresenceConfig{FailureThreshold: threshold}, discardLogger())
}

func (f *fixture) conversationService() *ConversationServiceImpl {
	return NewConversationService(f.store, f.recipients, f.targets, f.members, f.watches, f.transport, nil, discardLogger())
}
