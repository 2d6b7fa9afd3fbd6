package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/taskboard/taskboard-go/internal/session"
)

// Renewer is the refresh scheduler's on-demand surface. Implemented by
// session.Refresher; defined here at the consumer.
type Renewer interface {
	RenewNow(ctx context.Context) (*session.Session, error)
}

// SessionController receives the forced-logout transition when an
// authentication failure turns terminal. Implemented by session.Manager.
type SessionController interface {
	Logout() error
}

// httpTransport is the request/response chain for queries and mutations:
// credential injection, the network round-trip, and auth-failure recovery.
type httpTransport struct {
	endpoint   string
	httpClient *http.Client
	store      *session.Store
	renewer    Renewer
	controller SessionController
	logger     *slog.Logger
}

// Execute implements Transport. The result is delivered as a one-shot
// stream so request/response and streaming operations share a shape.
func (t *httpTransport) Execute(ctx context.Context, op *Operation) (*Stream, error) {
	resp, err := t.do(ctx, op, true)

	return singleEventStream(resp, err), nil
}

// do runs the operation with auth-failure recovery. The single-retry rule
// is explicit local state, not a property of the call chain: an operation
// is resubmitted at most once, and only after a renewal that completed
// after the failure that triggered it.
//
// recover=false bypasses recovery entirely; the token-renewal exchange
// itself runs this way so a rejected refresh can never re-enter the
// renewal path.
func (t *httpTransport) do(ctx context.Context, op *Operation, recover bool) (*Response, error) {
	retried := false

	for {
		resp, err := t.roundTrip(ctx, op)
		if err != nil {
			// Transport-class failures pass through; retry policy for
			// those belongs to the caller.
			return nil, err
		}

		if !recover || !isUnauthenticated(resp) {
			return resp, nil
		}

		if retried {
			// Second unauthenticated result after a completed refresh
			// cycle. Terminal — never loop.
			t.logger.Warn("operation unauthenticated after token renewal",
				slog.String("operation", op.Name),
			)

			return nil, t.terminalAuthFailure()
		}

		current, storeErr := t.store.Get()
		if storeErr != nil || current == nil {
			return nil, t.terminalAuthFailure()
		}

		t.logger.Info("operation unauthenticated, renewing token",
			slog.String("operation", op.Name),
		)

		if _, renewErr := t.renewer.RenewNow(ctx); renewErr != nil {
			return nil, t.terminalAuthFailure()
		}

		// Resubmit exactly once. roundTrip re-reads the store, so the
		// retry carries the renewed token, never a cached one.
		retried = true
	}
}

// terminalAuthFailure clears the session, transitions the state machine to
// unauthenticated, and returns the terminal error surfaced to the caller.
func (t *httpTransport) terminalAuthFailure() error {
	if err := t.controller.Logout(); err != nil {
		t.logger.Error("forced logout failed", slog.String("error", err.Error()))
	}

	return ErrAuthExpired
}

// roundTrip executes a single request/response exchange. The access token
// is read from the store here, per attempt — a non-blocking read of current
// state, never a trigger for refresh.
func (t *httpTransport) roundTrip(ctx context.Context, op *Operation) (*Response, error) {
	body, err := json.Marshal(request{
		OperationName: op.Name,
		Query:         op.Document,
		Variables:     op.Variables,
	})
	if err != nil {
		return nil, fmt.Errorf("gql: encoding operation %s: %w", op.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gql: creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if tok := t.currentToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, op.Name, err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %s: HTTP %d", ErrTransport, op.Name, resp.StatusCode)
		}

		return nil, fmt.Errorf("%w: %s: decoding response: %v", ErrTransport, op.Name, err)
	}

	t.logger.Debug("operation completed",
		slog.String("operation", op.Name),
		slog.String("kind", op.Kind.String()),
		slog.Int("status", resp.StatusCode),
		slog.Int("errors", len(out.Errors)),
	)

	return &out, nil
}

// currentToken returns the stored access token, or "" when signed out. An
// unreadable store reads as signed out; the server rejects what it must.
func (t *httpTransport) currentToken() string {
	sess, err := t.store.Get()
	if err != nil || sess == nil {
		return ""
	}

	return sess.AccessToken
}
