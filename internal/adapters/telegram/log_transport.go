package telegram

import (
	"context"
	"log/slog"

	"github.com/example/beacon/internal/ports/secondary"
)

// LogTransport stands in for the Bot API when no token is configured.
// Every message is logged and reported as sent.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a LogTransport. A nil logger selects slog.Default().
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

// Send logs the message instead of delivering it.
func (t *LogTransport) Send(ctx context.Context, handle string, msg secondary.OutboundMessage) error {
	t.logger.Info("telegram disabled, message not delivered", "handle", handle, "text", msg.Text)
	return nil
}

var _ secondary.Transport = (*LogTransport)(nil)
