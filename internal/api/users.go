package api

import (
	"context"
	"fmt"

	"github.com/taskboard/taskboard-go/internal/gql"
	"github.com/taskboard/taskboard-go/internal/session"
)

const meDoc = `query Me {
  me {
    id
    name
    email
    avatar
  }
}`

const usersDoc = `query GetUsers {
  users {
    id
    name
    email
    avatar
  }
}`

// Me fetches the signed-in user's profile from the server. Unlike
// Manager.CurrentUser, this round-trips, so it reflects server-side changes.
func (c *Client) Me(ctx context.Context) (*session.Profile, error) {
	op := gql.NewOperation("Me", meDoc, nil)

	resp, err := c.gql.Do(ctx, op)
	if err != nil {
		return nil, err
	}

	if err := resp.Err(); err != nil {
		return nil, err
	}

	var data struct {
		Me *session.Profile `json:"me"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, fmt.Errorf("api: decoding me: %w", err)
	}

	return data.Me, nil
}

// Users lists all users, for task assignment.
func (c *Client) Users(ctx context.Context) ([]*session.Profile, error) {
	op := gql.NewOperation("GetUsers", usersDoc, nil)

	resp, err := c.gql.Do(ctx, op)
	if err != nil {
		return nil, err
	}

	if err := resp.Err(); err != nil {
		return nil, err
	}

	var data struct {
		Users []*session.Profile `json:"users"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, fmt.Errorf("api: decoding users: %w", err)
	}

	return data.Users, nil
}
