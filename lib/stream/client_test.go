// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parley-ops/parley/lib/envelope"
)

func TestClientOpenMessageStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/conversations/conv-1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID missing")
		}

		var request MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if request.Text != "hello" {
			t.Errorf("request.Text = %q, want hello", request.Text)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(frameFor(`{"kind":"lifecycle","stream_id":"s1","event_id":1,"status":"streaming"}`)))
		w.Write([]byte(frameFor(`{"kind":"final","stream_id":"s1","event_id":2,"final":{"status":"completed"}}`)))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Token:   "tok-123",
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	events, err := client.OpenMessageStream(context.Background(), "conv-1", MessageRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("OpenMessageStream: %v", err)
	}
	defer events.Close()

	var kinds []envelope.Kind
	for events.Next() {
		kinds = append(kinds, events.Envelope().Kind)
	}
	if err := events.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(kinds) != 2 || kinds[0] != envelope.KindLifecycle || kinds[1] != envelope.KindFinal {
		t.Errorf("kinds = %v, want [lifecycle final]", kinds)
	}
}

func TestClientErrorResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":"tenant_suspended","message":"tenant is suspended"}}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.OpenMessageStream(context.Background(), "conv-1", MessageRequest{Text: "hi"})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %T, want *TransportError", err)
	}
	if transportErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", transportErr.StatusCode)
	}
	if transportErr.Message != "tenant is suspended" {
		t.Errorf("Message = %q, want server-provided message", transportErr.Message)
	}
}

func TestClientErrorResponseNonJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.OpenMessageStream(context.Background(), "conv-1", MessageRequest{Text: "hi"})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %T, want *TransportError", err)
	}
	if transportErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", transportErr.StatusCode)
	}
	if transportErr.Message != "bad gateway" {
		t.Errorf("Message = %q, want raw body fallback", transportErr.Message)
	}
}

func TestClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("NewClient accepted empty base URL")
	}

	client, err := NewClient(ClientConfig{BaseURL: "http://localhost:1", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.OpenMessageStream(context.Background(), "", MessageRequest{Text: "x"}); err == nil {
		t.Error("OpenMessageStream accepted empty conversation ID")
	}
	if _, err := client.OpenMessageStream(context.Background(), "conv-1", MessageRequest{}); err == nil {
		t.Error("OpenMessageStream accepted empty message text")
	}
}
