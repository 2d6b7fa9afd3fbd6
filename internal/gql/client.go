package gql

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskboard/taskboard-go/internal/session"
)

// wsCloseTimeout bounds the courtesy complete/close writes on stream teardown.
const wsCloseTimeout = 5 * time.Second

// Transport carries an operation over one wire protocol and delivers its
// results as a stream.
type Transport interface {
	Execute(ctx context.Context, op *Operation) (*Stream, error)
}

// Config assembles a Client. The zero values of HTTPClient and Logger get
// sensible defaults; everything else is required.
type Config struct {
	// HTTPEndpoint serves queries and mutations.
	HTTPEndpoint string

	// WSEndpoint serves subscriptions.
	WSEndpoint string

	HTTPClient *http.Client
	Store      *session.Store
	Renewer    Renewer
	Controller SessionController
	Logger     *slog.Logger
}

// Client routes operations to the right transport and executes them. It is
// an explicit, constructed object owned by the composition root — there is
// deliberately no package-level default client.
type Client struct {
	http   *httpTransport
	stream *wsTransport
	logger *slog.Logger
}

// NewClient builds a client from the config.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		http: &httpTransport{
			endpoint:   cfg.HTTPEndpoint,
			httpClient: httpClient,
			store:      cfg.Store,
			renewer:    cfg.Renewer,
			controller: cfg.Controller,
			logger:     logger,
		},
		stream: &wsTransport{
			endpoint:   cfg.WSEndpoint,
			httpClient: httpClient,
			store:      cfg.Store,
			logger:     logger,
		},
		logger: logger,
	}
}

// Route returns the transport that carries op: the streaming transport for
// subscriptions, the request/response chain for queries and mutations. A
// pure function of op.Kind — variables and name are never consulted, and
// routing itself cannot fail.
func (c *Client) Route(op *Operation) Transport {
	if op.Kind == KindSubscription {
		return c.stream
	}

	return c.http
}

// Do routes and executes a request/response operation, returning its single
// result. Authentication failures are absorbed and recovered where possible;
// see the transport chain.
func (c *Client) Do(ctx context.Context, op *Operation) (*Response, error) {
	stream, err := c.Route(op).Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	return stream.Next(ctx)
}

// Subscribe routes and executes a streaming operation. The caller owns the
// returned stream and must Close it.
func (c *Client) Subscribe(ctx context.Context, op *Operation) (*Stream, error) {
	return c.Route(op).Execute(ctx, op)
}

// Exchange executes a request/response operation with auth-failure recovery
// disabled. The token-renewal exchange itself goes through here so that a
// rejected refresh token surfaces directly instead of re-entering the
// renewal path.
func (c *Client) Exchange(ctx context.Context, op *Operation) (*Response, error) {
	return c.http.do(ctx, op, false)
}
