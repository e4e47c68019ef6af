package primary

import "context"

// NotificationService defines the primary port for outbound notifications.
// Delivery failures are handled per recipient and never abort a fan-out:
// transient ones are logged, permanent ones retire the recipient.
type NotificationService interface {
	// Broadcast sends text to every recipient matching the filter.
	Broadcast(ctx context.Context, text string, filter RecipientFilter) (*DeliveryReport, error)

	// Unicast makes a single delivery attempt to one recipient by ID.
	Unicast(ctx context.Context, recipientID, text string) (*DeliveryReport, error)

	// NotifyWatchers sends text to every recipient watching a member,
	// regardless of their broadcast flag.
	NotifyWatchers(ctx context.Context, memberID, text string) (*DeliveryReport, error)

	// SendToOne resolves a recipient by display name and sends text to it.
	// Returns an error wrapping secondary.ErrNotFound when nobody has that name.
	SendToOne(ctx context.Context, text, recipientName string) (*DeliveryReport, error)

	// ListRecipients retrieves recipients matching the filter.
	ListRecipients(ctx context.Context, filter RecipientFilter) ([]*Recipient, error)
}

// RecipientFilter selects recipients by broadcast subscription.
// A nil Subscribed matches everyone.
type RecipientFilter struct {
	Subscribed *bool
}

// DeliveryReport counts the outcome of a fan-out.
type DeliveryReport struct {
	Sent    int
	Failed  int
	Retired int
}

// Add accumulates another report into r.
func (r *DeliveryReport) Add(other *DeliveryReport) {
	if other == nil {
		return
	}
	r.Sent += other.Sent
	r.Failed += other.Failed
	r.Retired += other.Retired
}

// Recipient is a chat user at the port boundary.
type Recipient struct {
	ID                  string
	Handle              string
	Name                string
	FirstName           string
	BroadcastSubscribed bool
	ConversationState   string
	CreatedAt           string
}
