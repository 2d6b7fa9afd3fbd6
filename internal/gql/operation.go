// Package gql implements the authenticated GraphQL transport pipeline:
// routing operations to the right wire transport, attaching credentials,
// recovering from authentication failures, and carrying subscription streams.
package gql

import (
	"encoding/json"
	"strings"
)

// Kind classifies an operation and is the sole input to transport routing.
type Kind int

const (
	KindQuery Kind = iota
	KindMutation
	KindSubscription
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMutation:
		return "mutation"
	case KindSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// Operation is one unit of work submitted to the API: a GraphQL document
// plus its variables. Kind is derived from the document's leading keyword
// at construction and is immutable afterwards.
type Operation struct {
	Kind      Kind
	Name      string
	Document  string
	Variables map[string]any
}

// NewOperation builds an Operation, classifying it from the document's
// declared shape (the operation keyword), never from its name.
func NewOperation(name, document string, variables map[string]any) *Operation {
	return &Operation{
		Kind:      parseKind(document),
		Name:      name,
		Document:  document,
		Variables: variables,
	}
}

// parseKind reads the operation keyword off the front of the document.
// Shorthand documents ("{ tasks { id } }") are queries per the GraphQL spec.
func parseKind(document string) Kind {
	trimmed := strings.TrimSpace(document)

	switch {
	case strings.HasPrefix(trimmed, "mutation"):
		return KindMutation
	case strings.HasPrefix(trimmed, "subscription"):
		return KindSubscription
	default:
		return KindQuery
	}
}

// request is the GraphQL-over-HTTP request envelope.
type request struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL execution result: data alongside any field errors.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []*APIError     `json:"errors,omitempty"`
}

// Decode unmarshals the response data into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Err returns the response's first terminal error classification, or nil
// when the response carries no errors. Partial responses with errors still
// report the error — callers that want partial data read Data regardless.
func (r *Response) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}

	return r.Errors[0]
}
