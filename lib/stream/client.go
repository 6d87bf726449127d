// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/parley-ops/parley/lib/netutil"
)

// MessageRequest is the body of a send-message call: the operator's
// text plus optional routing hints for the tenant's agent fleet.
type MessageRequest struct {
	// Text is the operator's message.
	Text string `json:"text"`

	// Agent optionally pins the responding agent.
	Agent string `json:"agent,omitempty"`

	// WorkflowKey optionally asks the tenant to run a named workflow
	// instead of a plain chat turn.
	WorkflowKey string `json:"workflow_key,omitempty"`
}

// ClientConfig configures a [Client].
type ClientConfig struct {
	// BaseURL is the console API root, e.g. "https://api.parley.dev".
	BaseURL string

	// Token is the operator session bearer token.
	Token string

	// RequestID generates the correlation ID attached to each
	// request. Optional; defaults to a crypto/rand hex string.
	RequestID func() string

	// HTTPClient overrides the HTTP client. Optional. The default
	// has no overall timeout: a streaming response stays open for
	// the life of the generation and is bounded by the caller's
	// context instead.
	HTTPClient *http.Client

	// Logger is used for request-level warnings. Optional.
	Logger *slog.Logger
}

// Client opens live event streams against the console API.
type Client struct {
	baseURL    string
	token      string
	requestID  func() string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the config and builds a client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("stream: base URL is required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		requestID:  config.RequestID,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
	if client.requestID == nil {
		client.requestID = randomRequestID
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client, nil
}

// OpenMessageStream posts a message to a conversation and returns the
// live envelope stream of the tenant's response. The caller owns the
// returned stream and must close it; cancelling ctx closes it too.
func (c *Client) OpenMessageStream(ctx context.Context, conversationID string, request MessageRequest) (*Stream, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("stream: conversation ID is required")
	}
	if request.Text == "" {
		return nil, fmt.Errorf("stream: message text is required")
	}

	endpoint := fmt.Sprintf("%s/v1/conversations/%s/messages", c.baseURL, conversationID)
	response, err := c.do(ctx, endpoint, request)
	if err != nil {
		return nil, err
	}
	return NewStream(ctx, response.Body, c.logger), nil
}

// do sends a streaming POST and returns the open response. Non-2xx
// responses are drained into a [TransportError].
func (c *Client) do(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("stream: marshaling request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("stream: creating request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "text/event-stream")
	httpRequest.Header.Set("X-Request-ID", c.requestID())
	if c.token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, &TransportError{Message: "sending request", Err: err}
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		defer httpResponse.Body.Close()
		return nil, readAPIError(httpResponse)
	}

	c.logger.Debug("event stream opened",
		"endpoint", endpoint,
		"status", httpResponse.StatusCode,
		"handshake", time.Since(started))
	return httpResponse, nil
}

// readAPIError parses a console API error body, which uses the common
// {"error":{"code":"...","message":"..."}} format. Bodies that do not
// match fall back to a raw snippet.
func readAPIError(httpResponse *http.Response) error {
	body := netutil.ErrorSnippet(httpResponse.Body)

	var wireError struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &TransportError{
			StatusCode: httpResponse.StatusCode,
			Message:    wireError.Error.Message,
		}
	}

	return &TransportError{
		StatusCode: httpResponse.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
