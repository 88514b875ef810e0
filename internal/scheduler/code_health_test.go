package scheduler

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/store"
)

func TestNextCursorRoundRobinsAndWraps(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	first := nextCursor(st, "test_cursor", 3)
	second := nextCursor(st, "test_cursor", 3)
	third := nextCursor(st, "test_cursor", 3)
	fourth := nextCursor(st, "test_cursor", 3)

	require.Equal(t, 0, first)
	require.Equal(t, 1, second)
	require.Equal(t, 2, third)
	require.Equal(t, 0, fourth)
}

func TestDueDailyTrueWhenNeverRun(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.True(t, dueDaily(st, "never_run_key"))
}

func TestDueDailyFalseWithinWindow(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SetState("recent_key", strconv.FormatInt(time.Now().Unix(), 10)))
	require.False(t, dueDaily(st, "recent_key"))
}

func TestDueDailyTrueAfterWindowElapses(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	stale := time.Now().Add(-48 * time.Hour).Unix()
	require.NoError(t, st.SetState("stale_key", strconv.FormatInt(stale, 10)))
	require.True(t, dueDaily(st, "stale_key"))
}
