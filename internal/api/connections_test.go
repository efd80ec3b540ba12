package api_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewcoach/backend/internal/api"
	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/domain/connection"
)

func TestConnections_CommitRejectsStaleSnapshot(t *testing.T) {
	conns := api.NewConnections(time.Hour)
	c := connection.New()
	c.Backend = backend.Ollama
	conns.Save(c)

	snap, rev, err := conns.Snapshot(c.ID)
	require.NoError(t, err)

	_, err = conns.Update(c.ID, func(cur *connection.Connection) error {
		cur.Backend = backend.OpenAI
		return nil
	})
	require.NoError(t, err)

	snap.Connected = true
	snap.Model = "llama3.2"
	current, err := conns.Commit(snap, rev)
	assert.ErrorIs(t, err, api.ErrConnectionChanged)
	assert.Equal(t, backend.OpenAI, current.Backend)

	stored, err := conns.View(c.ID)
	require.NoError(t, err)
	assert.Equal(t, backend.OpenAI, stored.Backend)
	assert.False(t, stored.Connected)
}

func TestConnections_CommitAtCurrentRevision(t *testing.T) {
	conns := api.NewConnections(time.Hour)
	c := connection.New()
	conns.Save(c)

	snap, rev, err := conns.Snapshot(c.ID)
	require.NoError(t, err)
	snap.Model = "gpt-4o-mini"
	_, err = conns.Commit(snap, rev)
	require.NoError(t, err)

	_, err = conns.Commit(snap, rev)
	assert.ErrorIs(t, err, api.ErrConnectionChanged)

	_, _, err = conns.Snapshot("missing")
	assert.ErrorIs(t, err, api.ErrUnknownConnection)
}
