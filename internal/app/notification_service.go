package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/beacon/internal/ctxutil"
	"github.com/example/beacon/internal/metrics"
	"github.com/example/beacon/internal/ports/primary"
	"github.com/example/beacon/internal/ports/secondary"
)

// Delivery kinds used for metrics and logs.
const (
	kindBroadcast = "broadcast"
	kindUnicast   = "unicast"
	kindWatchers  = "watchers"
	kindReply     = "reply"
)

// deliverer makes single delivery attempts and applies the failure policy:
// transient failures are logged, permanent ones retire the recipient.
type deliverer struct {
	recipients secondary.RecipientRepository
	transport  secondary.Transport
	logger     *slog.Logger
}

func (d *deliverer) deliver(ctx context.Context, kind string, rec *secondary.RecipientRecord, msg secondary.OutboundMessage) *primary.DeliveryReport {
	report := &primary.DeliveryReport{}

	err := d.transport.Send(ctx, rec.Handle, msg)
	if err == nil {
		report.Sent++
		metrics.RecordDelivery(kind, metrics.StatusSent)
		return report
	}

	report.Failed++
	if !secondary.IsPermanentDelivery(err) {
		metrics.RecordDelivery(kind, metrics.StatusTransient)
		ctxutil.Logger(ctx, d.logger).Warn("delivery failed", "kind", kind, "recipient", rec.ID, "error", err)
		return report
	}

	metrics.RecordDelivery(kind, metrics.StatusPermanent)
	logger := ctxutil.Logger(ctx, d.logger)
	if delErr := d.recipients.Delete(ctx, rec.ID); delErr != nil {
		logger.Error("failed to retire unreachable recipient", "recipient", rec.ID, "error", delErr)
		return report
	}
	report.Retired++
	metrics.RecordRecipientRetired()
	logger.Info("retired unreachable recipient", "recipient", rec.ID, "handle", rec.Handle, "error", err)
	return report
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	recipients secondary.RecipientRepository
	watches    secondary.WatchRepository
	deliverer  *deliverer
	logger     *slog.Logger
}

// NewNotificationService creates a new NotificationService with injected dependencies.
func NewNotificationService(
	recipients secondary.RecipientRepository,
	watches secondary.WatchRepository,
	transport secondary.Transport,
	logger *slog.Logger,
) *NotificationServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationServiceImpl{
		recipients: recipients,
		watches:    watches,
		deliverer:  &deliverer{recipients: recipients, transport: transport, logger: logger},
		logger:     logger,
	}
}

// Broadcast sends text to every recipient matching the filter.
func (s *NotificationServiceImpl) Broadcast(ctx context.Context, text string, filter primary.RecipientFilter) (*primary.DeliveryReport, error) {
	records, err := s.recipients.List(ctx, secondary.RecipientFilters{Subscribed: filter.Subscribed})
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}

	report := s.fanOut(ctx, kindBroadcast, records, text)
	ctxutil.Logger(ctx, s.logger).Info("broadcast sent", "recipients", len(records), "sent", report.Sent, "failed", report.Failed, "retired", report.Retired)
	return report, nil
}

// Unicast makes a single delivery attempt to one recipient.
func (s *NotificationServiceImpl) Unicast(ctx context.Context, recipientID, text string) (*primary.DeliveryReport, error) {
	record, err := s.recipients.GetByID(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient %s: %w", recipientID, err)
	}
	return s.deliverer.deliver(ctx, kindUnicast, record, secondary.OutboundMessage{Text: text}), nil
}

// NotifyWatchers sends text to every recipient watching the member.
func (s *NotificationServiceImpl) NotifyWatchers(ctx context.Context, memberID, text string) (*primary.DeliveryReport, error) {
	watchers, err := s.watches.ListWatchers(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchers of %s: %w", memberID, err)
	}
	return s.fanOut(ctx, kindWatchers, watchers, text), nil
}

// SendToOne resolves a recipient by display name and sends text to it.
func (s *NotificationServiceImpl) SendToOne(ctx context.Context, text, recipientName string) (*primary.DeliveryReport, error) {
	record, err := s.recipients.GetByName(ctx, recipientName)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipient %q: %w", recipientName, err)
	}
	return s.deliverer.deliver(ctx, kindUnicast, record, secondary.OutboundMessage{Text: text}), nil
}

// ListRecipients retrieves recipients matching the filter.
func (s *NotificationServiceImpl) ListRecipients(ctx context.Context, filter primary.RecipientFilter) ([]*primary.Recipient, error) {
	records, err := s.recipients.List(ctx, secondary.RecipientFilters{Subscribed: filter.Subscribed})
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}

	recipients := make([]*primary.Recipient, len(records))
	for i, r := range records {
		recipients[i] = recordToRecipient(r)
	}
	return recipients, nil
}

// fanOut delivers to each recipient in turn. A failure never stops the loop;
// a cancelled ctx does.
func (s *NotificationServiceImpl) fanOut(ctx context.Context, kind string, records []*secondary.RecipientRecord, text string) *primary.DeliveryReport {
	report := &primary.DeliveryReport{}
	msg := secondary.OutboundMessage{Text: text}
	for _, r := range records {
		if ctx.Err() != nil {
			s.logger.Warn("fan-out interrupted", "kind", kind, "remaining", len(records)-report.Sent-report.Failed, "error", ctx.Err())
			break
		}
		report.Add(s.deliverer.deliver(ctx, kind, r, msg))
	}
	return report
}

func recordToRecipient(r *secondary.RecipientRecord) *primary.Recipient {
	return &primary.Recipient{
		ID:                  r.ID,
		Handle:              r.Handle,
		Name:                r.Name,
		FirstName:           r.FirstName,
		BroadcastSubscribed: r.BroadcastSubscribed,
		ConversationState:   r.ConversationState,
		CreatedAt:           r.CreatedAt,
	}
}

// Ensure NotificationServiceImpl implements the interface
var _ primary.NotificationService = (*NotificationServiceImpl)(nil)
