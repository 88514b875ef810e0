package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/store"
)

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = float32(len(text)%7) / 7
	}
	return v, nil
}
func (f *fakeEmbedder) Dimensions() int { return f.dims }

type fakeSummarizer struct{ calls int }

func (f *fakeSummarizer) Summarize(ctx context.Context, turns []store.Turn) (string, error) {
	f.calls++
	return "summary of turns", nil
}

func newTestFabric(t *testing.T, embedder Embedder, summarizer Summarizer) (*Fabric, *store.Store, *store.Project) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.MemoryConfig{
		KRecent: 10, KSemantic: 8, KPerHead: 12,
		WeightSimilarity: 0.5, WeightRecency: 0.3, WeightSalience: 0.2,
		CrossProjectDistanceThreshold: 0.25,
		DecayHorizonHours:             24 * 14,
		DecayStep:                     0.05,
		ArchiveConfidenceFloor:        0.1,
		RollingSummaryEvery:           3,
		BatchSummaryEvery:             6,
	}
	p, err := st.UpsertProject("/repo", "repo")
	require.NoError(t, err)
	return New(st, embedder, summarizer, cfg), st, p
}

func TestRecordTurnExtractsEntitiesAndLinksThem(t *testing.T) {
	f, st, p := newTestFabric(t, nil, nil)
	sess, err := st.CreateSession(p.ID)
	require.NoError(t, err)

	err = f.RecordTurn(context.Background(), &store.Turn{
		SessionID: sess.ID, ProjectID: p.ID, Role: "user",
		Content: "Look at internal/store/schema.go for the Project type",
	})
	require.NoError(t, err)

	turns, err := st.RecentTurns(sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)

	var links int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM memory_entity_links WHERE turn_id = ?`, turns[0].ID).Scan(&links))
	require.Greater(t, links, 0)
}

func TestRecordTurnEnqueuesEmbeddingWhenEmbedderPresent(t *testing.T) {
	f, st, p := newTestFabric(t, &fakeEmbedder{dims: 8}, nil)
	sess, err := st.CreateSession(p.ID)
	require.NoError(t, err)

	require.NoError(t, f.RecordTurn(context.Background(), &store.Turn{
		SessionID: sess.ID, ProjectID: p.ID, Role: "user", Content: "hello there",
	}))

	pending, err := st.DequeueEmbeddings(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "turn", pending[0].Kind)
}

func TestRollingSummaryFiresOnCadence(t *testing.T) {
	summarizer := &fakeSummarizer{}
	f, st, p := newTestFabric(t, nil, summarizer)
	sess, err := st.CreateSession(p.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.RecordTurn(context.Background(), &store.Turn{
			SessionID: sess.ID, ProjectID: p.ID, Role: "user", Content: "turn content",
		}))
	}

	require.Equal(t, 1, summarizer.calls)
	sum, err := st.LatestSummary(sess.ID, "rolling")
	require.NoError(t, err)
	require.Equal(t, "summary of turns", sum.Content)
}

func TestRecallRanksByRecencyAndSalience(t *testing.T) {
	f, st, p := newTestFabric(t, nil, nil)
	sess, err := st.CreateSession(p.ID)
	require.NoError(t, err)

	require.NoError(t, st.AppendTurn(&store.Turn{SessionID: sess.ID, ProjectID: p.ID, Role: "user", Content: "low salience", Salience: 1}))
	require.NoError(t, st.AppendTurn(&store.Turn{SessionID: sess.ID, ProjectID: p.ID, Role: "user", Content: "high salience", Salience: 9}))

	hits, err := f.Recall(context.Background(), RecallRequest{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "high salience", hits[0].Content)
}

func TestDecayAndArchiveRemovesStaleFacts(t *testing.T) {
	f, st, p := newTestFabric(t, nil, nil)
	_, err := st.InsertFact(&store.MemoryFact{ProjectID: p.ID, Statement: "old fact", Confidence: 0.03})
	require.NoError(t, err)

	n, err := f.DecayAndArchive(p.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
}
