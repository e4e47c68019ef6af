// Package telegram implements the messaging ports over the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

const (
	// DefaultAPIURL is the public Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"
	// DefaultPollTimeout is the long-poll timeout passed to getUpdates.
	DefaultPollTimeout = 30 * time.Second

	maxResponseBytes = 4 << 20
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Token is the bot token issued by BotFather.
	Token string
	// APIURL is the Bot API base URL. Empty selects DefaultAPIURL.
	APIURL string
	// HTTPClient is used for all requests. If nil, NewHTTPClient() is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// PollTimeout is the getUpdates long-poll timeout. Zero selects DefaultPollTimeout.
	PollTimeout time.Duration
}

// Client is a Bot API client. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	pollTimeout time.Duration
}

// NewClient creates a Bot API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}

	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("telegram: invalid API URL %q: %w", apiURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = NewHTTPClient()
		if err != nil {
			return nil, err
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollTimeout := config.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(apiURL, "/") + "/bot" + config.Token,
		httpClient:  httpClient,
		logger:      logger,
		pollTimeout: pollTimeout,
	}, nil
}

// NewHTTPClient builds an HTTP client whose transport negotiates HTTP/2 with
// the Bot API and falls back to HTTP/1.1 elsewhere.
func NewHTTPClient() (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("telegram: failed to configure HTTP/2 transport: %w", err)
	}
	return &http.Client{Transport: transport}, nil
}

// APIError is a non-ok Bot API response.
type APIError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// Code is the Bot API error_code.
	Code int
	// Description is the human-readable error from the server.
	Description string
	// RetryAfter is set on 429 responses, in seconds.
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d: %s", e.Code, e.Description)
}

// Forbidden reports whether the bot may never message this chat again
// (blocked by the user, user deactivated, kicked from the group).
func (e *APIError) Forbidden() bool {
	return e.StatusCode == http.StatusForbidden || e.Code == http.StatusForbidden
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// call invokes a Bot API method with a JSON body and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("telegram: failed to encode %s request: %w", method, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		// Never log or wrap the URL: it carries the token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("telegram: failed to read %s response: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram: unexpected %d response from %s: %s", response.StatusCode, method, truncate(raw, 200))
	}

	if !env.OK || response.StatusCode < 200 || response.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode:  response.StatusCode,
			Code:        env.ErrorCode,
			Description: env.Description,
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram: failed to parse %s result: %w", method, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
