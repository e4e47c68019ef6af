package telegram

import (
	"context"
	"errors"

	"github.com/example/beacon/internal/ports/secondary"
)

type keyboardButton struct {
	Text string `json:"text"`
}

type replyKeyboardMarkup struct {
	Keyboard       [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string               `json:"chat_id"`
	Text        string               `json:"text"`
	ReplyMarkup *replyKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Send delivers one message to the chat identified by handle.
// A 403 from the Bot API is a permanent failure; everything else is transient.
func (c *Client) Send(ctx context.Context, handle string, msg secondary.OutboundMessage) error {
	req := sendMessageRequest{ChatID: handle, Text: msg.Text}
	if msg.Keyboard != nil {
		markup := &replyKeyboardMarkup{ResizeKeyboard: true}
		for _, row := range msg.Keyboard {
			buttons := make([]keyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, keyboardButton{Text: label})
			}
			markup.Keyboard = append(markup.Keyboard, buttons)
		}
		req.ReplyMarkup = markup
	}

	err := c.call(ctx, "sendMessage", req, nil)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	permanent := errors.As(err, &apiErr) && apiErr.Forbidden()
	return &secondary.DeliveryError{Handle: handle, Permanent: permanent, Err: err}
}

// Ensure Client implements the interface.
var _ secondary.Transport = (*Client)(nil)
