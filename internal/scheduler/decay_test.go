package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/store"
)

func TestDecayJobArchivesAcrossAllProjects(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	p1, err := st.UpsertProject("/tmp/decay-a", "a")
	require.NoError(t, err)
	p2, err := st.UpsertProject("/tmp/decay-b", "b")
	require.NoError(t, err)

	for _, p := range []*store.Project{p1, p2} {
		_, err := st.InsertFact(&store.MemoryFact{ProjectID: p.ID, Statement: "stale fact in " + p.ID, Confidence: 0.01})
		require.NoError(t, err)
	}

	fabric := memory.New(st, nil, nil, config.MemoryConfig{KRecent: 5, KSemantic: 5, KPerHead: 5, DecayStep: 0.5, ArchiveConfidenceFloor: 0.05})
	job := DecayJob(st, fabric, config.SchedulerConfig{DecayPeriod: time.Hour})

	err = job.Run(context.Background())
	require.NoError(t, err)

	for _, p := range []*store.Project{p1, p2} {
		facts, err := st.ActiveFacts(p.ID, 10)
		require.NoError(t, err)
		require.Empty(t, facts)
	}
}

func TestDecayJobSkipsProjectsWithNoFacts(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	fabric := memory.New(st, nil, nil, config.MemoryConfig{KRecent: 5, KSemantic: 5, KPerHead: 5})
	job := DecayJob(st, fabric, config.SchedulerConfig{DecayPeriod: time.Hour})

	require.NoError(t, job.Run(context.Background()))
}
