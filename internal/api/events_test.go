package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard-go/internal/gql"
)

func TestDecodeTaskField(t *testing.T) {
	decode := decodeTaskField("taskCreated")

	resp := &gql.Response{Data: []byte(`{"taskCreated":{"id":"t1","title":"Ship it","status":"todo"}}`)}

	ev, err := decode(resp)
	require.NoError(t, err)
	require.NotNil(t, ev.Task)
	assert.Equal(t, "t1", ev.Task.ID)
	assert.Empty(t, ev.DeletedID)
}

func TestDecodeTaskField_ErrorPayload(t *testing.T) {
	decode := decodeTaskField("taskUpdated")

	resp := &gql.Response{Errors: []*gql.APIError{{
		Message:    "boom",
		Extensions: map[string]any{"code": "INTERNAL_SERVER_ERROR"},
	}}}

	_, err := decode(resp)
	require.ErrorIs(t, err, gql.ErrServer)
}

func TestDecodeDeletedID(t *testing.T) {
	resp := &gql.Response{Data: []byte(`{"taskDeleted":"t9"}`)}

	ev, err := decodeDeletedID(resp)
	require.NoError(t, err)
	assert.Equal(t, "t9", ev.DeletedID)
	assert.Nil(t, ev.Task)
}
