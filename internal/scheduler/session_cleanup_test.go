package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/store"
)

func TestSessionCleanupJobEndsIdleSessions(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	proj, err := st.UpsertProject("/tmp/cleanup", "cleanup")
	require.NoError(t, err)
	sess, err := st.CreateSession(proj.ID)
	require.NoError(t, err)

	job := SessionCleanupJob(st, config.SchedulerConfig{SessionCleanupPeriod: time.Minute, SessionIdleHours: 0})
	require.NoError(t, job.Run(context.Background()))

	idle, err := st.IdleSessionsBefore(time.Now().Add(time.Hour))
	require.NoError(t, err)
	for _, s := range idle {
		require.NotEqual(t, sess.ID, s.ID, "session should already be ended")
	}
}

func TestSessionCleanupJobNoopWhenNothingIdle(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	job := SessionCleanupJob(st, config.SchedulerConfig{SessionCleanupPeriod: time.Minute, SessionIdleHours: 9999})
	require.NoError(t, job.Run(context.Background()))
}
