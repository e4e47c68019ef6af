package secondary

import "context"

// Transport defines the secondary port for outbound chat messages.
// Send makes exactly one attempt; failures are *DeliveryError values.
type Transport interface {
	Send(ctx context.Context, handle string, msg OutboundMessage) error
}

// OutboundMessage is a text message with an optional reply keyboard.
type OutboundMessage struct {
	Text string
	// Keyboard rows of button labels. Nil leaves the client keyboard untouched.
	Keyboard [][]string
}

// InboundSource delivers inbound chat messages in arrival order.
// The returned channel is closed once ctx is done.
type InboundSource interface {
	Messages(ctx context.Context) <-chan InboundMessage
}

// InboundMessage is a text message received from a chat user.
type InboundMessage struct {
	Handle    string
	Username  string
	FirstName string
	Text      string
}

// TickLocker serializes ticks per target key.
type TickLocker interface {
	// Lock blocks until the key is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
