package api

import (
	"context"
	"fmt"
	"time"

	"github.com/taskboard/taskboard-go/internal/gql"
	"github.com/taskboard/taskboard-go/internal/session"
)

// Task statuses understood by the API.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Task is a task as returned by the API, with its user relations resolved.
type Task struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	Priority    string           `json:"priority"`
	DueDate     *time.Time       `json:"dueDate"`
	CreatedBy   *session.Profile `json:"createdBy"`
	AssignedTo  *session.Profile `json:"assignedTo"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

const tasksDoc = `query GetTasks {
  tasks {
    id
    title
    description
    status
    priority
    dueDate
    createdBy { id name email avatar }
    assignedTo { id name email avatar }
    createdAt
    updatedAt
  }
}`

const createTaskDoc = `mutation CreateTask($title: String!, $description: String) {
  createTask(title: $title, description: $description) {
    id
    title
    description
    status
    priority
    createdAt
    updatedAt
  }
}`

const updateTaskDoc = `mutation UpdateTask($id: ID!, $status: String!) {
  updateTask(id: $id, status: $status) {
    id
    title
    status
    updatedAt
  }
}`

const deleteTaskDoc = `mutation DeleteTask($id: ID!) {
  deleteTask(id: $id)
}`

// Tasks fetches every task visible to the signed-in user.
func (c *Client) Tasks(ctx context.Context) ([]*Task, error) {
	op := gql.NewOperation("GetTasks", tasksDoc, nil)

	resp, err := c.gql.Do(ctx, op)
	if err != nil {
		return nil, err
	}

	if err := resp.Err(); err != nil {
		return nil, err
	}

	var data struct {
		Tasks []*Task `json:"tasks"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, fmt.Errorf("api: decoding tasks: %w", err)
	}

	return data.Tasks, nil
}

// CreateTask creates a task with the given title and optional description.
func (c *Client) CreateTask(ctx context.Context, title, description string) (*Task, error) {
	vars := map[string]any{"title": title}
	if description != "" {
		vars["description"] = description
	}

	op := gql.NewOperation("CreateTask", createTaskDoc, vars)

	resp, err := c.gql.Do(ctx, op)
	if err != nil {
		return nil, err
	}

	if err := resp.Err(); err != nil {
		return nil, err
	}

	var data struct {
		CreateTask *Task `json:"createTask"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, fmt.Errorf("api: decoding createTask: %w", err)
	}

	return data.CreateTask, nil
}

// UpdateTaskStatus moves a task to a new status.
func (c *Client) UpdateTaskStatus(ctx context.Context, id, status string) (*Task, error) {
	op := gql.NewOperation("UpdateTask", updateTaskDoc, map[string]any{
		"id":     id,
		"status": status,
	})

	resp, err := c.gql.Do(ctx, op)
	if err != nil {
		return nil, err
	}

	if err := resp.Err(); err != nil {
		return nil, err
	}

	var data struct {
		UpdateTask *Task `json:"updateTask"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, fmt.Errorf("api: decoding updateTask: %w", err)
	}

	return data.UpdateTask, nil
}

// DeleteTask removes a task. Returns whether the server deleted it.
func (c *Client) DeleteTask(ctx context.Context, id string) (bool, error) {
	op := gql.NewOperation("DeleteTask", deleteTaskDoc, map[string]any{"id": id})

	resp, err := c.gql.Do(ctx, op)
	if err != nil {
		return false, err
	}

	if err := resp.Err(); err != nil {
		return false, err
	}

	var data struct {
		DeleteTask bool `json:"deleteTask"`
	}
	if err := resp.Decode(&data); err != nil {
		return false, fmt.Errorf("api: decoding deleteTask: %w", err)
	}

	return data.DeleteTask, nil
}
