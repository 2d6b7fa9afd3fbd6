// Package api provides typed bindings for the taskboard GraphQL schema.
// Each binding wraps one named operation document; transport selection,
// credentials, and auth recovery are the gql package's concern.
package api

import (
	"github.com/taskboard/taskboard-go/internal/gql"
)

// Client exposes the schema's operations over a gql.Client.
type Client struct {
	gql *gql.Client
}

// New wraps a transport client in the typed API surface.
func New(c *gql.Client) *Client {
	return &Client{gql: c}
}
