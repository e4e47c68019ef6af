package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/beacon/internal/core/conversation"
	"github.com/example/beacon/internal/ctxutil"
	"github.com/example/beacon/internal/metrics"
	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/ports/secondary"
)

// ConversationServiceImpl implements the ConversationService interface.
type ConversationServiceImpl struct {
	tx         secondary.Transactor
	recipients secondary.RecipientRepository
	targets    secondary.TargetRepository
	members    secondary.MemberRepository
	watches    secondary.WatchRepository
	deliverer  *deliverer
	location   *time.Location
	logger     *slog.Logger
}

// NewConversationService creates a new ConversationService with injected dependencies.
// Status timestamps are rendered in loc.
func NewConversationService(
	tx secondary.Transactor,
	recipients secondary.RecipientRepository,
	targets secondary.TargetRepository,
	members secondary.MemberRepository,
	watches secondary.WatchRepository,
	transport secondary.Transport,
	loc *time.Location,
	logger *slog.Logger,
) *ConversationServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationServiceImpl{
		tx:         tx,
		recipients: recipients,
		targets:    targets,
		members:    members,
		watches:    watches,
		deliverer:  &deliverer{recipients: recipients, transport: transport, logger: logger},
		location:   loc,
		logger:     logger,
	}
}

// HandleMessage advances the sender's conversation and sends the reply.
// State changes commit before the reply is sent.
func (s *ConversationServiceImpl) HandleMessage(ctx context.Context, msg primary.InboundMessage) (*primary.ConversationResult, error) {
	ctx = ctxutil.WithActorID(ctx, ctxutil.ChatActor(msg.Handle))

	var (
		recipient *secondary.RecipientRecord
		decision  conversation.Decision
		out       secondary.OutboundMessage
		next      conversation.State
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		recipient, err = s.ensureRecipient(ctx, msg)
		if err != nil {
			return err
		}

		state := conversation.ParseState(recipient.ConversationState)
		decision = conversation.Decide(state, msg.Text)

		next, out, err = s.apply(ctx, recipient, decision)
		if err != nil {
			return err
		}
		if next != state {
			if err := s.recipients.SetConversationState(ctx, recipient.ID, string(next)); err != nil {
				return fmt.Errorf("failed to store conversation state: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to handle message from %s: %w", msg.Handle, err)
	}

	metrics.RecordInboundMessage(string(decision.Action))
	ctxutil.Logger(ctx, s.logger).Debug("message handled", "recipient", recipient.ID, "action", decision.Action, "state", next)

	s.deliverer.deliver(ctx, kindReply, recipient, out)

	return &primary.ConversationResult{
		RecipientID: recipient.ID,
		Action:      string(decision.Action),
		State:       string(next),
		Reply:       out.Text,
	}, nil
}

// ensureRecipient returns the sender's row, creating it on first contact.
func (s *ConversationServiceImpl) ensureRecipient(ctx context.Context, msg primary.InboundMessage) (*secondary.RecipientRecord, error) {
	record, err := s.recipients.GetByHandle(ctx, msg.Handle)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, secondary.ErrNotFound) {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}

	id, err := s.recipients.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate recipient ID: %w", err)
	}
	record = &secondary.RecipientRecord{
		ID:                id,
		Handle:            msg.Handle,
		Name:              msg.Username,
		FirstName:         msg.FirstName,
		ConversationState: string(conversation.StateNone),
	}
	if err := s.recipients.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}
	ctxutil.Logger(ctx, s.logger).Info("new recipient", "recipient", id, "handle", msg.Handle)
	return record, nil
}

// apply performs the side effects of a decision and builds the reply.
func (s *ConversationServiceImpl) apply(ctx context.Context, r *secondary.RecipientRecord, d conversation.Decision) (conversation.State, secondary.OutboundMessage, error) {
	switch d.Action {
	case conversation.ActionWelcome:
		return d.NextState, reply(conversation.WelcomeText(r.FirstName), conversation.MainKeyboard), nil

	case conversation.ActionShowMenu:
		return d.NextState, reply(conversation.MenuText, conversation.MainKeyboard), nil

	case conversation.ActionStatus:
		text, err := s.statusText(ctx)
		if err != nil {
			return "", secondary.OutboundMessage{}, err
		}
		return d.NextState, reply(text, conversation.MainKeyboard), nil

	case conversation.ActionNotificationsMenu:
		return d.NextState, reply(conversation.NotificationsIntro, conversation.NotificationsKeyboard(r.BroadcastSubscribed)), nil

	case conversation.ActionSubscribe, conversation.ActionUnsubscribe:
		subscribed := d.Action == conversation.ActionSubscribe
		if err := s.recipients.SetBroadcastSubscribed(ctx, r.ID, subscribed); err != nil {
			return "", secondary.OutboundMessage{}, fmt.Errorf("failed to update subscription: %w", err)
		}
		r.BroadcastSubscribed = subscribed
		text := conversation.UnsubscribedText
		if subscribed {
			text = conversation.SubscribedText
		}
		return d.NextState, reply(text, conversation.NotificationsKeyboard(subscribed)), nil

	case conversation.ActionWatchlist:
		watched, err := s.watches.ListByRecipient(ctx, r.ID)
		if err != nil {
			return "", secondary.OutboundMessage{}, fmt.Errorf("failed to list watchlist: %w", err)
		}
		entries := make([]conversation.WatchEntry, len(watched))
		for i, w := range watched {
			entries[i] = conversation.WatchEntry{Name: w.MemberName, Target: w.TargetName, Present: w.Present}
		}
		return d.NextState, reply(conversation.WatchlistText(entries), conversation.WatchKeyboard), nil

	case conversation.ActionPromptFollow:
		return d.NextState, reply(conversation.FollowPromptText, conversation.CancelKeyboard), nil

	case conversation.ActionPromptUnfollow:
		return d.NextState, reply(conversation.UnfollowPromptText, conversation.CancelKeyboard), nil

	case conversation.ActionFollow:
		return s.follow(ctx, r, d)

	case conversation.ActionUnfollow:
		return s.unfollow(ctx, r, d)

	case conversation.ActionAbort:
		return d.NextState, reply(conversation.AbortText, conversation.MainKeyboard), nil

	default:
		return d.NextState, reply(conversation.UnknownText, conversation.MainKeyboard), nil
	}
}

// follow watches every member with the given name, on any target.
func (s *ConversationServiceImpl) follow(ctx context.Context, r *secondary.RecipientRecord, d conversation.Decision) (conversation.State, secondary.OutboundMessage, error) {
	matches, err := s.members.FindByName(ctx, d.Argument)
	if err != nil {
		return "", secondary.OutboundMessage{}, fmt.Errorf("failed to find member: %w", err)
	}
	if len(matches) == 0 {
		return d.RetryState, reply(conversation.UnknownMemberText(d.Argument), conversation.CancelKeyboard), nil
	}

	created := 0
	for _, m := range matches {
		id, err := s.watches.GetNextID(ctx)
		if err != nil {
			return "", secondary.OutboundMessage{}, fmt.Errorf("failed to generate watch ID: %w", err)
		}
		err = s.watches.Create(ctx, &secondary.WatchRecord{ID: id, RecipientID: r.ID, MemberID: m.ID})
		if errors.Is(err, secondary.ErrConflict) {
			continue
		}
		if err != nil {
			return "", secondary.OutboundMessage{}, fmt.Errorf("failed to create watch: %w", err)
		}
		created++
	}

	if created == 0 {
		return d.NextState, reply(conversation.AlreadyFollowingText(d.Argument), conversation.MainKeyboard), nil
	}
	return d.NextState, reply(conversation.FollowedText(d.Argument), conversation.MainKeyboard), nil
}

// unfollow removes the watches on every member with the given name.
func (s *ConversationServiceImpl) unfollow(ctx context.Context, r *secondary.RecipientRecord, d conversation.Decision) (conversation.State, secondary.OutboundMessage, error) {
	matches, err := s.members.FindByName(ctx, d.Argument)
	if err != nil {
		return "", secondary.OutboundMessage{}, fmt.Errorf("failed to find member: %w", err)
	}
	if len(matches) == 0 {
		return d.RetryState, reply(conversation.UnknownMemberText(d.Argument), conversation.CancelKeyboard), nil
	}

	removed := 0
	for _, m := range matches {
		err := s.watches.Delete(ctx, r.ID, m.ID)
		if errors.Is(err, secondary.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", secondary.OutboundMessage{}, fmt.Errorf("failed to delete watch: %w", err)
		}
		removed++
	}

	if removed == 0 {
		return d.NextState, reply(conversation.NotFollowingText(d.Argument), conversation.MainKeyboard), nil
	}
	return d.NextState, reply(conversation.UnfollowedText(d.Argument), conversation.MainKeyboard), nil
}

func (s *ConversationServiceImpl) statusText(ctx context.Context) (string, error) {
	statuses, err := listTargetStatuses(ctx, s.targets, s.members)
	if err != nil {
		return "", err
	}

	views := make([]conversation.TargetStatus, len(statuses))
	for i, t := range statuses {
		updated, _ := time.Parse(time.RFC3339, t.UpdatedAt)
		views[i] = conversation.TargetStatus{
			Name:       t.Name,
			Up:         t.Up,
			Population: t.Population,
			Capacity:   t.Capacity,
			Players:    t.Present,
			UpdatedAt:  updated,
		}
	}
	return conversation.StatusText(views, s.location), nil
}

func reply(text string, keyboard [][]string) secondary.OutboundMessage {
	return secondary.OutboundMessage{Text: text, Keyboard: keyboard}
}

// Ensure ConversationServiceImpl implements the interface
var _ primary.ConversationService = (*ConversationServiceImpl)(nil)
