package gql

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard-go/internal/session"
)

const unauthenticatedBody = `{"errors":[{"message":"token expired","extensions":{"code":"UNAUTHENTICATED"}}]}`

const successBody = `{"data":{"tasks":[{"id":"1"}]}}`

// scriptedServer returns canned GraphQL responses in order, recording the
// Authorization header of each request. The last response repeats.
type scriptedServer struct {
	mu        sync.Mutex
	responses []string
	headers   []string
}

func (s *scriptedServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.headers = append(s.headers, r.Header.Get("Authorization"))

		body := s.responses[0]
		if len(s.responses) > 1 {
			s.responses = s.responses[1:]
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func (s *scriptedServer) seenHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.headers...)
}

// fakeRenewer implements Renewer with a test-provided function.
type fakeRenewer struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context) (*session.Session, error)
}

func (f *fakeRenewer) RenewNow(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.fn == nil {
		return nil, errors.New("renewal not expected")
	}

	return f.fn(ctx)
}

func (f *fakeRenewer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func testProfileSession(access string) *session.Session {
	return &session.Session{
		AccessToken:  access,
		RefreshToken: "R1",
		Profile:      session.Profile{ID: "u1", DisplayName: "Ann", Email: "ann@example.com"},
	}
}

// newTestPipeline wires a client against the given server with a fresh
// store and manager.
func newTestPipeline(t *testing.T, url string, renewer Renewer) (*Client, *session.Store, *session.Manager) {
	t.Helper()

	store := session.NewStore(session.NewMemoryKV())
	manager := session.NewManager(store, slog.New(slog.DiscardHandler))

	client := NewClient(Config{
		HTTPEndpoint: url,
		WSEndpoint:   "ws://unused",
		Store:        store,
		Renewer:      renewer,
		Controller:   manager,
		Logger:       slog.New(slog.DiscardHandler),
	})

	return client, store, manager
}

func queryOp() *Operation {
	return NewOperation("GetTasks", "query GetTasks { tasks { id } }", nil)
}

func TestDo_InjectsCurrentToken(t *testing.T) {
	srv := &scriptedServer{responses: []string{successBody}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	client, store, _ := newTestPipeline(t, ts.URL, &fakeRenewer{})
	require.NoError(t, store.Set(testProfileSession("T1")))

	resp, err := client.Do(context.Background(), queryOp())
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	assert.Equal(t, []string{"Bearer T1"}, srv.seenHeaders())
}

func TestDo_NoSessionSendsNoCredential(t *testing.T) {
	srv := &scriptedServer{responses: []string{successBody}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	client, _, _ := newTestPipeline(t, ts.URL, &fakeRenewer{})

	_, err := client.Do(context.Background(), queryOp())
	require.NoError(t, err)

	assert.Equal(t, []string{""}, srv.seenHeaders())
}

func TestDo_TransparentRetryAfterRenewal(t *testing.T) {
	srv := &scriptedServer{responses: []string{unauthenticatedBody, successBody}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var (
		client *Client
		store  *session.Store
	)

	// Renewal writes the refreshed session into the store, like the real
	// refresher does.
	renewer := &fakeRenewer{fn: func(_ context.Context) (*session.Session, error) {
		renewed := testProfileSession("A2")
		require.NoError(t, store.Set(renewed))

		return renewed, nil
	}}

	client, store, _ = newTestPipeline(t, ts.URL, renewer)
	require.NoError(t, store.Set(testProfileSession("A1")))

	resp, err := client.Do(context.Background(), queryOp())

	// The caller sees only the successful result, never the auth failure.
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	// Original attempt with A1, resubmission with the renewed A2.
	assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, srv.seenHeaders())
	assert.Equal(t, 1, renewer.callCount())
}

func TestDo_SecondUnauthenticatedIsTerminal(t *testing.T) {
	srv := &scriptedServer{responses: []string{unauthenticatedBody}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var store *session.Store

	renewer := &fakeRenewer{fn: func(_ context.Context) (*session.Session, error) {
		renewed := testProfileSession("A2")
		require.NoError(t, store.Set(renewed))

		return renewed, nil
	}}

	client, s, manager := newTestPipeline(t, ts.URL, renewer)
	store = s
	require.NoError(t, store.Set(testProfileSession("A1")))

	_, err := client.Do(context.Background(), queryOp())
	require.ErrorIs(t, err, ErrAuthExpired)

	// Exactly one retry happened, then the terminal path ran: store
	// cleared, state machine unauthenticated.
	assert.Len(t, srv.seenHeaders(), 2)
	assert.Equal(t, 1, renewer.callCount())
	assert.Equal(t, session.StateUnauthenticated, manager.State())

	persisted, getErr := store.Get()
	require.NoError(t, getErr)
	assert.Nil(t, persisted)
}

func TestDo_NoRefreshTokenIsTerminal(t *testing.T) {
	srv := &scriptedServer{responses: []string{unauthenticatedBody}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	renewer := &fakeRenewer{}
	client, _, manager := newTestPipeline(t, ts.URL, renewer)

	_, err := client.Do(context.Background(), queryOp())
	require.ErrorIs(t, err, ErrAuthExpired)

	assert.Equal(t, 0, renewer.callCount())
	assert.Equal(t, session.StateUnauthenticated, manager.State())
}

func TestDo_RenewalFailureIsTerminal(t *testing.T) {
	srv := &scriptedServer{responses: []string{unauthenticatedBody}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	renewer := &fakeRenewer{fn: func(_ context.Context) (*session.Session, error) {
		return nil, session.ErrRefreshInvalid
	}}

	client, store, manager := newTestPipeline(t, ts.URL, renewer)
	require.NoError(t, store.Set(testProfileSession("A1")))

	_, err := client.Do(context.Background(), queryOp())
	require.ErrorIs(t, err, ErrAuthExpired)

	// No resubmission after a failed renewal.
	assert.Len(t, srv.seenHeaders(), 1)
	assert.Equal(t, session.StateUnauthenticated, manager.State())
}

func TestDo_NonAuthErrorsPassThrough(t *testing.T) {
	body := `{"errors":[{"message":"title too short","extensions":{"code":"VALIDATION_ERROR"}}]}`
	srv := &scriptedServer{responses: []string{body}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	renewer := &fakeRenewer{}
	client, store, manager := newTestPipeline(t, ts.URL, renewer)
	require.NoError(t, store.Set(testProfileSession("A1")))

	resp, err := client.Do(context.Background(), queryOp())
	require.NoError(t, err)

	// The error rides the response, classified but untouched: no retry,
	// no renewal, session intact.
	assert.ErrorIs(t, resp.Err(), ErrValidation)
	assert.Len(t, srv.seenHeaders(), 1)
	assert.Equal(t, 0, renewer.callCount())
	assert.Equal(t, session.StateAuthenticated, manager.State())
}

func TestDo_NetworkFailureIsTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close() // connection refused

	client, _, _ := newTestPipeline(t, ts.URL, &fakeRenewer{})

	_, err := client.Do(context.Background(), queryOp())
	require.ErrorIs(t, err, ErrTransport)
}

func TestDo_MalformedBodyIsTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer ts.Close()

	client, _, _ := newTestPipeline(t, ts.URL, &fakeRenewer{})

	_, err := client.Do(context.Background(), queryOp())
	require.ErrorIs(t, err, ErrTransport)
}

func TestExchange_BypassesAuthRecovery(t *testing.T) {
	srv := &scriptedServer{responses: []string{unauthenticatedBody}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	renewer := &fakeRenewer{}
	client, store, manager := newTestPipeline(t, ts.URL, renewer)
	require.NoError(t, store.Set(testProfileSession("A1")))

	resp, err := client.Exchange(context.Background(), queryOp())
	require.NoError(t, err)

	// The auth error surfaces directly: no renewal, no forced logout.
	assert.ErrorIs(t, resp.Err(), ErrUnauthenticated)
	assert.Equal(t, 0, renewer.callCount())
	assert.Equal(t, session.StateAuthenticated, manager.State())
}
