package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/beacon/internal/core/effects"
	"github.com/example/beacon/internal/core/presence"
	"github.com/example/beacon/internal/metrics"
	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/ports/secondary"
)

// PresenceConfig holds the tunables of the presence engine.
type PresenceConfig struct {
	ProbeTimeout     time.Duration
	FailureThreshold int
}

// PresenceServiceImpl implements the PresenceService interface.
type PresenceServiceImpl struct {
	tx       secondary.Transactor
	targets  secondary.TargetRepository
	members  secondary.MemberRepository
	prober   secondary.Prober
	locker   secondary.TickLocker
	executor EffectExecutor
	config   PresenceConfig
	logger   *slog.Logger
}

// NewPresenceService creates a new PresenceService with injected dependencies.
func NewPresenceService(
	tx secondary.Transactor,
	targets secondary.TargetRepository,
	members secondary.MemberRepository,
	prober secondary.Prober,
	locker secondary.TickLocker,
	executor EffectExecutor,
	config PresenceConfig,
	logger *slog.Logger,
) *PresenceServiceImpl {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = presence.DefaultFailureThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceServiceImpl{
		tx:       tx,
		targets:  targets,
		members:  members,
		prober:   prober,
		locker:   locker,
		executor: executor,
		config:   config,
		logger:   logger,
	}
}

// Tick probes one target and applies the observed state.
func (s *PresenceServiceImpl) Tick(ctx context.Context, spec primary.TargetSpec) (*primary.TickResult, error) {
	unlock, err := s.locker.Lock(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to lock target %s: %w", spec.Name, err)
	}
	defer unlock()

	start := time.Now()
	snapshot, probeErr := s.probe(ctx, spec.Address)
	if probeErr != nil && ctx.Err() != nil {
		// Shutting down; a cancelled probe says nothing about the target.
		return nil, ctx.Err()
	}

	result := &primary.TickResult{Target: spec.Name}
	var effs []effects.Effect
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var applyErr error
		if probeErr == nil {
			effs, applyErr = s.applySuccess(ctx, spec, snapshot, result)
		} else {
			effs, applyErr = s.applyFailure(ctx, spec, result)
		}
		return applyErr
	})
	if err != nil {
		metrics.RecordTick(spec.Name, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to apply tick for %s: %w", spec.Name, err)
	}

	result.Notifications = len(effs)
	s.record(result, probeErr, time.Since(start))

	if len(effs) > 0 && s.executor != nil {
		if err := s.executor.Execute(ctx, effs); err != nil {
			s.logger.Error("failed to dispatch tick notifications", "target", spec.Name, "error", err)
		}
	}
	return result, nil
}

// TickAll ticks every target in order.
func (s *PresenceServiceImpl) TickAll(ctx context.Context, specs []primary.TargetSpec) ([]*primary.TickResult, error) {
	results := make([]*primary.TickResult, 0, len(specs))
	var errs []error
	for _, spec := range specs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		result, err := s.Tick(ctx, spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

// ListTargets retrieves the persisted state of every target.
func (s *PresenceServiceImpl) ListTargets(ctx context.Context) ([]*primary.TargetStatus, error) {
	return listTargetStatuses(ctx, s.targets, s.members)
}

func (s *PresenceServiceImpl) probe(ctx context.Context, address string) (*secondary.Snapshot, error) {
	if s.config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ProbeTimeout)
		defer cancel()
	}
	return s.prober.Probe(ctx, address)
}

func (s *PresenceServiceImpl) loadTarget(ctx context.Context, name string) (*secondary.TargetRecord, presence.TargetState, error) {
	record, err := s.targets.GetByName(ctx, name)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, presence.TargetState{}, nil
	}
	if err != nil {
		return nil, presence.TargetState{}, fmt.Errorf("failed to get target: %w", err)
	}
	return record, presence.TargetState{Exists: true, Up: record.Up, FailCount: record.FailCount}, nil
}

func (s *PresenceServiceImpl) applySuccess(ctx context.Context, spec primary.TargetSpec, snapshot *secondary.Snapshot, result *primary.TickResult) ([]effects.Effect, error) {
	record, state, err := s.loadTarget(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	transition := presence.EvaluateSuccess(state)

	if record == nil {
		id, err := s.targets.GetNextID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate target ID: %w", err)
		}
		record = &secondary.TargetRecord{
			ID:         id,
			Name:       spec.Name,
			Address:    spec.Address,
			Capacity:   snapshot.Capacity,
			Population: snapshot.Population,
			Up:         true,
		}
		if err := s.targets.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to create target: %w", err)
		}
	} else {
		record.Capacity = snapshot.Capacity
		record.Population = snapshot.Population
		record.Up = transition.Up
		record.FailCount = transition.FailCount
		if err := s.targets.Update(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to update target: %w", err)
		}
	}

	var effs []effects.Effect
	if text := presence.NoticeMessage(transition.Notice, spec.Name); text != "" {
		effs = append(effs, effects.BroadcastEffect{Text: text, SubscribedOnly: true})
	}

	diff, err := s.reconcileRoster(ctx, record, snapshot, state.Exists)
	if err != nil {
		return nil, err
	}
	for _, m := range diff.Rejoin {
		effs = append(effs, effects.WatchersEffect{
			MemberID: m.ID,
			Text:     presence.JoinedMessage(m.Name, spec.Name),
		})
	}

	result.Outcome = string(transition.Outcome)
	result.FailCount = record.FailCount
	result.Population = snapshot.Population
	result.Capacity = snapshot.Capacity
	result.Joined = diff.JoinedNames()
	result.Left = diff.LeftNames()
	return effs, nil
}

func (s *PresenceServiceImpl) reconcileRoster(ctx context.Context, target *secondary.TargetRecord, snapshot *secondary.Snapshot, existed bool) (presence.RosterDiff, error) {
	var persisted []presence.MemberState
	if existed {
		records, err := s.members.ListByTarget(ctx, target.ID)
		if err != nil {
			return presence.RosterDiff{}, fmt.Errorf("failed to list members: %w", err)
		}
		persisted = make([]presence.MemberState, len(records))
		for i, r := range records {
			persisted[i] = presence.MemberState{ID: r.ID, ExternalID: r.ExternalID, Name: r.Name, Present: r.Present}
		}
	}

	observed := make([]presence.ObservedMember, len(snapshot.Members))
	for i, m := range snapshot.Members {
		observed[i] = presence.ObservedMember{ExternalID: m.ID, Name: m.Name}
	}

	diff := presence.Reconcile(persisted, observed, snapshot.Complete())

	for _, o := range diff.Create {
		id, err := s.members.GetNextID(ctx)
		if err != nil {
			return diff, fmt.Errorf("failed to generate member ID: %w", err)
		}
		member := &secondary.MemberRecord{ID: id, TargetID: target.ID, ExternalID: o.ExternalID, Name: o.Name, Present: true}
		if err := s.members.Create(ctx, member); err != nil {
			return diff, fmt.Errorf("failed to create member %s: %w", o.Name, err)
		}
	}
	for _, m := range diff.Rejoin {
		if err := s.members.SetPresent(ctx, m.ID, true); err != nil {
			return diff, fmt.Errorf("failed to mark %s present: %w", m.Name, err)
		}
	}
	for _, m := range diff.Leave {
		if err := s.members.SetPresent(ctx, m.ID, false); err != nil {
			return diff, fmt.Errorf("failed to mark %s absent: %w", m.Name, err)
		}
	}
	return diff, nil
}

func (s *PresenceServiceImpl) applyFailure(ctx context.Context, spec primary.TargetSpec, result *primary.TickResult) ([]effects.Effect, error) {
	record, state, err := s.loadTarget(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	transition := presence.EvaluateFailure(state, s.config.FailureThreshold)

	result.Outcome = string(transition.Outcome)
	result.FailCount = transition.FailCount
	if record != nil {
		result.Population = record.Population
		result.Capacity = record.Capacity
	}
	if !transition.Persist {
		return nil, nil
	}

	record.Up = transition.Up
	record.FailCount = transition.FailCount
	if err := s.targets.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update target: %w", err)
	}

	if text := presence.NoticeMessage(transition.Notice, spec.Name); text != "" {
		return []effects.Effect{effects.BroadcastEffect{Text: text, SubscribedOnly: true}}, nil
	}
	return nil, nil
}

func (s *PresenceServiceImpl) record(result *primary.TickResult, probeErr error, elapsed time.Duration) {
	metrics.RecordTick(result.Target, result.Outcome, elapsed.Seconds())
	metrics.RecordRosterTransitions(result.Target, len(result.Joined), len(result.Left))

	up := probeErr == nil || result.Outcome == string(presence.OutcomeDebounced)
	metrics.SetTargetState(result.Target, up, result.Population)

	if probeErr == nil {
		s.logger.Info(fmt.Sprintf("target %s up, %d/%d online", result.Target, result.Population, result.Capacity),
			"target", result.Target, "outcome", result.Outcome, "joined", len(result.Joined), "left", len(result.Left))
		return
	}
	s.logger.Warn(fmt.Sprintf("target %s not responding", result.Target),
		"target", result.Target, "outcome", result.Outcome, "fail_count", result.FailCount, "error", probeErr)
}

// listTargetStatuses joins every target with the names of its present members.
func listTargetStatuses(ctx context.Context, targets secondary.TargetRepository, members secondary.MemberRepository) ([]*primary.TargetStatus, error) {
	records, err := targets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	statuses := make([]*primary.TargetStatus, 0, len(records))
	for _, r := range records {
		roster, err := members.ListByTarget(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list members of %s: %w", r.Name, err)
		}
		present := []string{}
		for _, m := range roster {
			if m.Present {
				present = append(present, m.Name)
			}
		}
		statuses = append(statuses, &primary.TargetStatus{
			ID:         r.ID,
			Name:       r.Name,
			Address:    r.Address,
			Up:         r.Up,
			FailCount:  r.FailCount,
			Population: r.Population,
			Capacity:   r.Capacity,
			Present:    present,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	return statuses, nil
}

// Ensure PresenceServiceImpl implements the interface
var _ primary.PresenceService = (*PresenceServiceImpl)(nil)
