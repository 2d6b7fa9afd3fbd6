package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskboard/taskboard-go/internal/gql"
	"github.com/taskboard/taskboard-go/internal/session"
)

const loginDoc = `mutation Login($email: String!, $password: String!) {
  login(email: $email, password: $password) {
    token
    refreshToken
    user {
      id
      name
      email
      avatar
    }
  }
}`

const registerDoc = `mutation Register($name: String!, $email: String!, $password: String!) {
  register(name: $name, email: $email, password: $password) {
    token
    refreshToken
    user {
      id
      name
      email
      avatar
    }
  }
}`

const refreshDoc = `mutation RefreshToken($refreshToken: String!) {
  refreshToken(refreshToken: $refreshToken) {
    token
    refreshToken
    user {
      id
      name
      email
      avatar
    }
  }
}`

// authPayload is the three-field session shape every auth operation returns.
type authPayload struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         session.Profile `json:"user"`
}

func (p *authPayload) session() *session.Session {
	return &session.Session{
		AccessToken:  p.Token,
		RefreshToken: p.RefreshToken,
		Profile:      p.User,
	}
}

// Login exchanges credentials for a session. Runs without auth recovery:
// there is nothing to refresh before a session exists.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Session, error) {
	return c.authExchange(ctx, "login", gql.NewOperation("Login", loginDoc, map[string]any{
		"email":    email,
		"password": password,
	}))
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, name, email, password string) (*session.Session, error) {
	return c.authExchange(ctx, "register", gql.NewOperation("Register", registerDoc, map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	}))
}

func (c *Client) authExchange(ctx context.Context, field string, op *gql.Operation) (*session.Session, error) {
	resp, err := c.gql.Exchange(ctx, op)
	if err != nil {
		return nil, err
	}

	if err := resp.Err(); err != nil {
		return nil, err
	}

	var data map[string]*authPayload
	if err := resp.Decode(&data); err != nil {
		return nil, fmt.Errorf("api: decoding %s response: %w", field, err)
	}

	payload := data[field]
	if payload == nil {
		return nil, fmt.Errorf("api: %s response missing payload", field)
	}

	sess := payload.session()
	if !sess.Valid() {
		return nil, fmt.Errorf("api: %s returned incomplete session", field)
	}

	return sess, nil
}

// RenewFunc adapts the refreshToken mutation to the session package's
// renewal contract, classifying failures into the session sentinels. The
// exchange bypasses auth recovery — a renewal that fails with an auth error
// must never trigger another renewal.
func (c *Client) RenewFunc() session.RenewFunc {
	return func(ctx context.Context, refreshToken string) (*session.Session, error) {
		op := gql.NewOperation("RefreshToken", refreshDoc, map[string]any{
			"refreshToken": refreshToken,
		})

		resp, err := c.gql.Exchange(ctx, op)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrRefreshNetwork, err)
		}

		if respErr := resp.Err(); respErr != nil {
			return nil, classifyRefreshError(respErr)
		}

		var data struct {
			RefreshToken *authPayload `json:"refreshToken"`
		}
		if err := resp.Decode(&data); err != nil {
			return nil, fmt.Errorf("%w: decoding refresh response: %v", session.ErrRefreshServer, err)
		}

		if data.RefreshToken == nil {
			return nil, fmt.Errorf("%w: refresh response missing payload", session.ErrRefreshServer)
		}

		return data.RefreshToken.session(), nil
	}
}

// classifyRefreshError maps a GraphQL error on the refresh exchange to a
// renewal failure reason. A rejected or expired refresh token is invalid;
// everything else is a server-side failure.
func classifyRefreshError(err error) error {
	if errors.Is(err, gql.ErrUnauthenticated) || errors.Is(err, gql.ErrValidation) {
		return fmt.Errorf("%w: %v", session.ErrRefreshInvalid, err)
	}

	return fmt.Errorf("%w: %v", session.ErrRefreshServer, err)
}
