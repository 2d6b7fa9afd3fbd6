package gql

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard-go/internal/session"
)

func newRoutingClient(t *testing.T) *Client {
	t.Helper()

	store := session.NewStore(session.NewMemoryKV())

	return NewClient(Config{
		HTTPEndpoint: "http://localhost:8080/query",
		WSEndpoint:   "ws://localhost:8080/query",
		Store:        store,
		Renewer:      &fakeRenewer{},
		Controller:   session.NewManager(store, slog.New(slog.DiscardHandler)),
		Logger:       slog.New(slog.DiscardHandler),
	})
}

func TestRoute_ByKindOnly(t *testing.T) {
	client := newRoutingClient(t)

	tests := []struct {
		name       string
		document   string
		wantStream bool
	}{
		{"query", "query Q { tasks { id } }", false},
		{"mutation", "mutation M { createTask { id } }", false},
		{"subscription", "subscription S { taskCreated { id } }", true},
		{"shorthand query", "{ tasks { id } }", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("Op", tt.document, map[string]any{"noise": "ignored"})
			transport := client.Route(op)

			// Exactly one transport per kind, never both.
			if tt.wantStream {
				assert.Same(t, client.stream, transport)
				assert.NotSame(t, client.http, transport)
			} else {
				assert.Same(t, client.http, transport)
				assert.NotSame(t, client.stream, transport)
			}
		})
	}
}

func TestRoute_IgnoresNameAndVariables(t *testing.T) {
	client := newRoutingClient(t)

	// A query named like a subscription still routes request/response.
	op := NewOperation("TaskCreated", "query TaskCreated { tasks { id } }", map[string]any{
		"subscription": true,
	})

	assert.Same(t, client.http, client.Route(op))
}

func TestNewClient_Defaults(t *testing.T) {
	store := session.NewStore(session.NewMemoryKV())

	client := NewClient(Config{
		HTTPEndpoint: "http://localhost:8080/query",
		WSEndpoint:   "ws://localhost:8080/query",
		Store:        store,
		Renewer:      &fakeRenewer{},
		Controller:   session.NewManager(store, slog.New(slog.DiscardHandler)),
	})

	require.NotNil(t, client.http.httpClient)
	require.NotNil(t, client.logger)
}
