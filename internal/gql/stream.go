package gql

import (
	"context"
	"fmt"
	"sync"
)

// Event is one result delivered by a transport: a subscription payload, the
// single result of a request/response operation, or a terminal error.
type Event struct {
	Resp *Response
	Err  error
}

// Stream delivers operation results. Request/response operations produce
// exactly one event and complete; subscriptions produce events until the
// server completes, an error occurs, or the stream is closed.
type Stream struct {
	events    <-chan Event
	closeOnce sync.Once
	closeFn   func()
}

// newStream wraps an event channel. closeFn tears down the underlying
// transport resources; it may be nil.
func newStream(events <-chan Event, closeFn func()) *Stream {
	return &Stream{events: events, closeFn: closeFn}
}

// singleEventStream packages a request/response result as a completed stream.
func singleEventStream(resp *Response, err error) *Stream {
	ch := make(chan Event, 1)
	ch <- Event{Resp: resp, Err: err}
	close(ch)

	return newStream(ch, nil)
}

// Events exposes the raw event channel. The channel closes when the stream
// completes.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Next blocks for the next event. Returns the event's error, ctx's error on
// cancellation, or ErrStreamClosed once the stream has completed.
func (s *Stream) Next(ctx context.Context) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("gql: waiting for result: %w", ctx.Err())
	case ev, ok := <-s.events:
		if !ok {
			return nil, ErrStreamClosed
		}

		if ev.Err != nil {
			return nil, ev.Err
		}

		return ev.Resp, nil
	}
}

// Close tears down the stream. Safe to call more than once and after
// completion.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		if s.closeFn != nil {
			s.closeFn()
		}
	})
}
