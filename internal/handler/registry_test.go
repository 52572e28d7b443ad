package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workhorse/internal/job"
)

func TestDispatchCallsRegisteredHandler(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("Widget", func(ctx context.Context, j *job.Job) error {
		called = true
		return nil
	})

	j, err := job.Decode([]byte(`{"jid":"1","klass":"Widget","args":[]}`))
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(context.Background(), j))
	assert.True(t, called)
}

func TestDispatchUnknownKlassReturnsHandlerNotFoundError(t *testing.T) {
	r := NewRegistry()
	j, err := job.Decode([]byte(`{"jid":"1","klass":"Ghost","args":[]}`))
	require.NoError(t, err)

	dispatchErr := r.Dispatch(context.Background(), j)
	require.Error(t, dispatchErr)

	var notFound *HandlerNotFoundError
	assert.ErrorAs(t, dispatchErr, &notFound)
	assert.Equal(t, "Ghost", notFound.Klass)
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	r := NewRegistry()
	sentinel := errors.New("handler blew up")
	r.Register("Widget", func(ctx context.Context, j *job.Job) error { return sentinel })

	j, err := job.Decode([]byte(`{"jid":"1","klass":"Widget","args":[]}`))
	require.NoError(t, err)

	assert.Equal(t, sentinel, r.Dispatch(context.Background(), j))
}
