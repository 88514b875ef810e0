package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/ipc"
	"github.com/ConaryLabs/mira/internal/store"
)

func TestDialFallsBackToDirectWhenSocketMissing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mira.db")
	// Seed the file so store.Open succeeds against a real sqlite file.
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	sockPath := filepath.Join(t.TempDir(), "nonexistent.sock")
	c := Dial(sockPath, 50, dbPath)
	require.Equal(t, tierDirect, c.tier)
}

func TestDialUnavailableWhenNothingWorks(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "nonexistent.sock")
	c := Dial(sockPath, 50, "")
	require.Equal(t, tierUnavailable, c.tier)

	err := c.Call(context.Background(), ipc.OpResolveProject, map[string]string{"root_path": "/tmp/x"}, nil)
	require.Error(t, err)
}

func TestFromStoreCallsResolveProjectDirectly(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := FromStore(st)

	var result struct {
		ProjectID string `json:"project_id"`
	}
	err = c.Call(context.Background(), ipc.OpResolveProject, map[string]string{"root_path": "/tmp/y", "name": "y"}, &result)
	require.NoError(t, err)
	require.NotEmpty(t, result.ProjectID)
}

func TestFromStoreRegisterAndCloseSession(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := FromStore(st)

	var reg struct {
		SessionID string `json:"session_id"`
		ProjectID string `json:"project_id"`
	}
	err = c.Call(context.Background(), ipc.OpRegisterSession, map[string]string{"root_path": "/tmp/z", "name": "z", "source": "hook"}, &reg)
	require.NoError(t, err)
	require.NotEmpty(t, reg.SessionID)

	err = c.Call(context.Background(), ipc.OpCloseSession, map[string]string{"session_id": reg.SessionID}, nil)
	require.NoError(t, err)
}
