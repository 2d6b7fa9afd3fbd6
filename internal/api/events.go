package api

import (
	"context"
	"fmt"

	"github.com/taskboard/taskboard-go/internal/gql"
)

const taskCreatedDoc = `subscription TaskCreated {
  taskCreated {
    id
    title
    description
    status
    priority
    createdBy { id name }
    assignedTo { id name }
    createdAt
  }
}`

const taskUpdatedDoc = `subscription TaskUpdated($taskId: ID) {
  taskUpdated(taskId: $taskId) {
    id
    title
    description
    status
    priority
    assignedTo { id name }
    updatedAt
  }
}`

const taskDeletedDoc = `subscription TaskDeleted {
  taskDeleted
}`

// TaskEvent is one change notification from the task subscriptions. Exactly
// one of Task or DeletedID is set.
type TaskEvent struct {
	// Type is "created", "updated", or "deleted".
	Type      string
	Task      *Task
	DeletedID string
}

// WatchTasks opens the three task subscriptions and merges their events
// into one channel. The returned stop function tears all of them down.
// Stream errors are delivered on errc and end that subscription; the
// caller decides whether to reconnect (required after a token renewal,
// since streaming credentials are fixed at connect time).
func (c *Client) WatchTasks(ctx context.Context) (<-chan TaskEvent, <-chan error, func(), error) {
	created, err := c.gql.Subscribe(ctx, gql.NewOperation("TaskCreated", taskCreatedDoc, nil))
	if err != nil {
		return nil, nil, nil, err
	}

	updated, err := c.gql.Subscribe(ctx, gql.NewOperation("TaskUpdated", taskUpdatedDoc, nil))
	if err != nil {
		created.Close()
		return nil, nil, nil, err
	}

	deleted, err := c.gql.Subscribe(ctx, gql.NewOperation("TaskDeleted", taskDeletedDoc, nil))
	if err != nil {
		created.Close()
		updated.Close()

		return nil, nil, nil, err
	}

	events := make(chan TaskEvent)
	errc := make(chan error, 3)

	stopCtx, cancel := context.WithCancel(ctx)

	go pumpTaskEvents(stopCtx, created, "created", decodeTaskField("taskCreated"), events, errc)
	go pumpTaskEvents(stopCtx, updated, "updated", decodeTaskField("taskUpdated"), events, errc)
	go pumpTaskEvents(stopCtx, deleted, "deleted", decodeDeletedID, events, errc)

	stop := func() {
		cancel()
		created.Close()
		updated.Close()
		deleted.Close()
	}

	return events, errc, stop, nil
}

// pumpTaskEvents forwards one stream's events through the decoder until the
// stream completes or ctx is canceled.
func pumpTaskEvents(
	ctx context.Context,
	stream *gql.Stream,
	eventType string,
	decode func(*gql.Response) (TaskEvent, error),
	events chan<- TaskEvent,
	errc chan<- error,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}

			if ev.Err != nil {
				errc <- ev.Err
				return
			}

			decoded, err := decode(ev.Resp)
			if err != nil {
				errc <- err
				return
			}

			decoded.Type = eventType

			select {
			case events <- decoded:
			case <-ctx.Done():
				return
			}
		}
	}
}

func decodeTaskField(field string) func(*gql.Response) (TaskEvent, error) {
	return func(resp *gql.Response) (TaskEvent, error) {
		if err := resp.Err(); err != nil {
			return TaskEvent{}, err
		}

		var data map[string]*Task
		if err := resp.Decode(&data); err != nil {
			return TaskEvent{}, fmt.Errorf("api: decoding %s event: %w", field, err)
		}

		return TaskEvent{Task: data[field]}, nil
	}
}

func decodeDeletedID(resp *gql.Response) (TaskEvent, error) {
	if err := resp.Err(); err != nil {
		return TaskEvent{}, err
	}

	var data struct {
		TaskDeleted string `json:"taskDeleted"`
	}
	if err := resp.Decode(&data); err != nil {
		return TaskEvent{}, fmt.Errorf("api: decoding taskDeleted event: %w", err)
	}

	return TaskEvent{DeletedID: data.TaskDeleted}, nil
}
