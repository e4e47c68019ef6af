package primary

import "context"

// ConversationService defines the primary port for inbound chat messages.
type ConversationService interface {
	// HandleMessage advances the sender's conversation and sends the reply.
	HandleMessage(ctx context.Context, msg InboundMessage) (*ConversationResult, error)
}

// InboundMessage is a chat message received from a user.
type InboundMessage struct {
	Handle    string
	Username  string
	FirstName string
	Text      string
}

// ConversationResult reports how a message was handled.
type ConversationResult struct {
	RecipientID string
	Action      string
	State       string
	Reply       string
}
