package telegram

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/example/beacon/internal/backoff"
	"github.com/example/beacon/internal/ports/secondary"
)

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	From *struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		Username  string `json:"username"`
	} `json:"from"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// getUpdates long-polls for updates newer than offset.
func (c *Client) getUpdates(ctx context.Context, offset int64) ([]update, error) {
	// Leave headroom over the server-side poll timeout.
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout+10*time.Second)
	defer cancel()

	var updates []update
	err := c.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(c.pollTimeout / time.Second),
		AllowedUpdates: []string{"message"},
	}, &updates)
	return updates, err
}

// Messages long-polls getUpdates and emits text messages in arrival order.
// Failed polls are retried with exponential backoff. The channel is closed
// once ctx is done.
func (c *Client) Messages(ctx context.Context) <-chan secondary.InboundMessage {
	out := make(chan secondary.InboundMessage)

	go func() {
		defer close(out)

		var offset int64
		retry := backoff.New(time.Second, time.Minute, 2.0)

		for ctx.Err() == nil {
			updates, err := c.getUpdates(ctx, offset)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("telegram poll failed", "error", err, "retry_in", retry.CurrentDelay())
				if waitRetry(ctx, retry, err) != nil {
					return
				}
				continue
			}
			retry.Reset()

			for _, u := range updates {
				offset = u.UpdateID + 1
				msg, ok := toInbound(u)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// waitRetry honors a 429 retry_after hint, otherwise backs off.
func waitRetry(ctx context.Context, retry *backoff.Backoff, pollErr error) error {
	var apiErr *APIError
	if errors.As(pollErr, &apiErr) && apiErr.RetryAfter > 0 {
		timer := time.NewTimer(time.Duration(apiErr.RetryAfter) * time.Second)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return retry.Wait(ctx)
}

func toInbound(u update) (secondary.InboundMessage, bool) {
	if u.Message == nil || u.Message.Text == "" {
		return secondary.InboundMessage{}, false
	}
	msg := secondary.InboundMessage{
		Handle: strconv.FormatInt(u.Message.Chat.ID, 10),
		Text:   u.Message.Text,
	}
	if u.Message.From != nil {
		msg.Username = u.Message.From.Username
		msg.FirstName = u.Message.From.FirstName
	}
	return msg, true
}

// Ensure Client implements the interface.
var _ secondary.InboundSource = (*Client)(nil)
