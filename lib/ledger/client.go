// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/netutil"
	"github.com/parley-ops/parley/lib/workflow"
)

// ClientConfig configures a [Client].
type ClientConfig struct {
	// BaseURL is the console API root, e.g. "https://api.parley.dev".
	BaseURL string

	// Token is the operator session bearer token.
	Token string

	// RequestID generates the correlation ID attached to each
	// request. Optional.
	RequestID func() string

	// HTTPClient overrides the HTTP client. Optional; the default
	// carries a 30 second timeout, since ledger reads are plain
	// request/response rather than long-lived streams.
	HTTPClient *http.Client

	// Logger is used for request-level warnings. Optional.
	Logger *slog.Logger
}

// Client reads persisted run history from the console API: the event
// ledger, workflow descriptors, and the run index.
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
		return nil, fmt.Errorf("ledger: base URL is required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		requestID:  config.RequestID,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client, nil
}

// RunEvents fetches the complete persisted event log of one run, in
// ledger order.
func (c *Client) RunEvents(ctx context.Context, runID string) ([]*envelope.Envelope, error) {
	if runID == "" {
		return nil, fmt.Errorf("ledger: run ID is required")
	}
	entity := "run " + runID
	endpoint := fmt.Sprintf("%s/v1/runs/%s/events", c.baseURL, runID)
	return c.fetchEvents(ctx, entity, endpoint)
}

// ConversationEvents fetches the complete persisted event log of one
// conversation, spanning all of its runs, in ledger order.
func (c *Client) ConversationEvents(ctx context.Context, conversationID string) ([]*envelope.Envelope, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("ledger: conversation ID is required")
	}
	entity := "conversation " + conversationID
	endpoint := fmt.Sprintf("%s/v1/conversations/%s/events", c.baseURL, conversationID)
	return c.fetchEvents(ctx, entity, endpoint)
}

// fetchEvents gets an {"events":[...]} response and decodes each
// element. Elements that fail envelope validation are dropped with a
// warning; one bad persisted row should not make a whole run
// unreplayable.
func (c *Client) fetchEvents(ctx context.Context, entity, endpoint string) ([]*envelope.Envelope, error) {
	body, err := c.get(ctx, entity, endpoint)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ReplayError{Entity: entity, Message: "decoding event list", Err: err}
	}

	events := make([]*envelope.Envelope, 0, len(wire.Events))
	for index, raw := range wire.Events {
		env, err := envelope.Decode(raw)
		if err != nil {
			c.logger.Warn("dropping undecodable ledger event",
				"entity", entity,
				"index", index,
				"error", err)
			continue
		}
		events = append(events, env)
	}
	return events, nil
}

// Workflow fetches the workflow descriptor for a key.
func (c *Client) Workflow(ctx context.Context, key string) (*workflow.Descriptor, error) {
	if key == "" {
		return nil, fmt.Errorf("ledger: workflow key is required")
	}
	entity := "workflow " + key
	body, err := c.get(ctx, entity, fmt.Sprintf("%s/v1/workflows/%s", c.baseURL, key))
	if err != nil {
		return nil, err
	}
	descriptor, err := workflow.Parse(body)
	if err != nil {
		return nil, &ReplayError{Entity: entity, Message: "decoding descriptor", Err: err}
	}
	return descriptor, nil
}

// RunSummary is one row of the run index.
type RunSummary struct {
	RunID          string `json:"run_id"`
	ConversationID string `json:"conversation_id"`
	WorkflowKey    string `json:"workflow_key,omitempty"`
	Status         string `json:"status"`
	Title          string `json:"title,omitempty"`
	StartedAt      string `json:"started_at,omitempty"`
}

// Runs fetches the tenant's run index, newest first.
func (c *Client) Runs(ctx context.Context) ([]RunSummary, error) {
	body, err := c.get(ctx, "run index", c.baseURL+"/v1/runs")
	if err != nil {
		return nil, err
	}
	var wire struct {
		Runs []RunSummary `json:"runs"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ReplayError{Entity: "run index", Message: "decoding run list", Err: err}
	}
	return wire.Runs, nil
}

// get performs an authenticated GET and returns the full body.
// Non-2xx responses become a [ReplayError].
func (c *Client) get(ctx context.Context, entity, endpoint string) ([]byte, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ReplayError{Entity: entity, Message: "creating request", Err: err}
	}
	httpRequest.Header.Set("Accept", "application/json")
	if c.requestID != nil {
		httpRequest.Header.Set("X-Request-ID", c.requestID())
	}
	if c.token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, &ReplayError{Entity: entity, Message: "sending request", Err: err}
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return nil, readAPIError(entity, httpResponse)
	}

	body, err := netutil.ReadResponse(httpResponse.Body)
	if err != nil {
		return nil, &ReplayError{Entity: entity, Message: "reading response", Err: err}
	}
	return body, nil
}

// readAPIError parses a console API error body, which uses the common
// {"error":{"code":"...","message":"..."}} format. Bodies that do not
// match fall back to a raw snippet.
func readAPIError(entity string, httpResponse *http.Response) error {
	body := netutil.ErrorSnippet(httpResponse.Body)

	var wireError struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ReplayError{
			Entity:     entity,
			StatusCode: httpResponse.StatusCode,
			Message:    wireError.Error.Message,
		}
	}

	return &ReplayError{
		Entity:     entity,
		StatusCode: httpResponse.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
