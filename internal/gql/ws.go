package gql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/taskboard/taskboard-go/internal/session"
)

// graphql-transport-ws protocol message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

const wsSubprotocol = "graphql-transport-ws"

// wsMessage is the graphql-transport-ws wire envelope.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsTransport carries subscription operations over a websocket. Credentials
// are evaluated once, at connect time, in the connection_init payload — a
// token renewed later does not retroactively update an open stream; picking
// it up requires a new connection.
type wsTransport struct {
	endpoint   string
	httpClient *http.Client
	store      *session.Store
	logger     *slog.Logger
}

// Execute implements Transport. Each subscription dials its own connection,
// performs the init/ack handshake, subscribes, and feeds events into the
// returned stream until complete, error, or Close.
func (t *wsTransport) Execute(ctx context.Context, op *Operation) (*Stream, error) {
	conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()

	payload, err := json.Marshal(request{
		OperationName: op.Name,
		Query:         op.Document,
		Variables:     op.Variables,
	})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode failed")
		return nil, fmt.Errorf("gql: encoding subscription %s: %w", op.Name, err)
	}

	if err := wsjson.Write(ctx, conn, wsMessage{ID: id, Type: msgSubscribe, Payload: payload}); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil, fmt.Errorf("%w: subscribing %s: %v", ErrTransport, op.Name, err)
	}

	t.logger.Info("subscription started",
		slog.String("operation", op.Name),
		slog.String("id", id),
	)

	events := make(chan Event)

	// readCtx outlives the dial context so the stream keeps delivering
	// after Execute returns; Close cancels it.
	readCtx, cancel := context.WithCancel(context.Background())

	go t.readLoop(readCtx, conn, id, op.Name, events)

	closeFn := func() {
		cancel()
		// Best effort: tell the server we are done before dropping the socket.
		writeCtx, writeCancel := context.WithTimeout(context.Background(), wsCloseTimeout)
		defer writeCancel()
		_ = wsjson.Write(writeCtx, conn, wsMessage{ID: id, Type: msgComplete})
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	}

	return newStream(events, closeFn), nil
}

// connect dials the streaming endpoint and completes the connection_init /
// connection_ack handshake. The current access token rides in the init
// payload's Authorization field; no session means an anonymous connection.
func (t *wsTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, t.endpoint, &websocket.DialOptions{
		HTTPClient:   t.httpClient,
		Subprotocols: []string{wsSubprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrTransport, t.endpoint, err)
	}

	initPayload := map[string]string{}
	if sess, storeErr := t.store.Get(); storeErr == nil && sess != nil {
		initPayload["Authorization"] = "Bearer " + sess.AccessToken
	}

	rawInit, err := json.Marshal(initPayload)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode failed")
		return nil, fmt.Errorf("gql: encoding connection params: %w", err)
	}

	if err := wsjson.Write(ctx, conn, wsMessage{Type: msgConnectionInit, Payload: rawInit}); err != nil {
		conn.Close(websocket.StatusInternalError, "init failed")
		return nil, fmt.Errorf("%w: connection init: %v", ErrTransport, err)
	}

	var ack wsMessage
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		conn.Close(websocket.StatusProtocolError, "no ack")
		return nil, fmt.Errorf("%w: awaiting connection ack: %v", ErrTransport, err)
	}

	if ack.Type != msgConnectionAck {
		conn.Close(websocket.StatusProtocolError, "unexpected message")
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrTransport, msgConnectionAck, ack.Type)
	}

	return conn, nil
}

// readLoop pumps server messages into the event channel until the server
// completes the subscription, an error arrives, or ctx is canceled.
func (t *wsTransport) readLoop(ctx context.Context, conn *websocket.Conn, id, opName string, events chan<- Event) {
	defer close(events)

	for {
		var msg wsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				return
			}

			t.deliver(ctx, events, Event{Err: fmt.Errorf("%w: reading stream %s: %v", ErrTransport, opName, err)})

			return
		}

		switch msg.Type {
		case msgPing:
			_ = wsjson.Write(ctx, conn, wsMessage{Type: msgPong})

		case msgNext:
			if msg.ID != id {
				continue
			}

			var resp Response
			if err := json.Unmarshal(msg.Payload, &resp); err != nil {
				t.deliver(ctx, events, Event{Err: fmt.Errorf("%w: decoding event on %s: %v", ErrTransport, opName, err)})
				return
			}

			if !t.deliver(ctx, events, Event{Resp: &resp}) {
				return
			}

		case msgError:
			if msg.ID != id {
				continue
			}

			var apiErrs []*APIError
			if err := json.Unmarshal(msg.Payload, &apiErrs); err != nil || len(apiErrs) == 0 {
				t.deliver(ctx, events, Event{Err: fmt.Errorf("%w: stream %s failed", ErrTransport, opName)})
				return
			}

			t.logger.Warn("subscription error",
				slog.String("operation", opName),
				slog.String("error", apiErrs[0].Message),
			)
			t.deliver(ctx, events, Event{Err: apiErrs[0]})

			return

		case msgComplete:
			if msg.ID != id {
				continue
			}

			t.logger.Info("subscription completed", slog.String("operation", opName))

			return
		}
	}
}

// deliver sends an event unless the stream consumer has gone away.
func (t *wsTransport) deliver(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
