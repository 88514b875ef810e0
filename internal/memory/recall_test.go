package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/store"
)

func TestCrossProjectLabelTightMatchForDecisionAndPattern(t *testing.T) {
	require.Equal(t, "You solved this in billing-api", crossProjectLabel("billing-api", 0.1, store.FactTypeDecision, 0.25))
	require.Equal(t, "You solved this in billing-api", crossProjectLabel("billing-api", 0.1, store.FactTypePattern, 0.25))
}

func TestCrossProjectLabelLooseForOtherFactTypesOrDistance(t *testing.T) {
	require.Equal(t, "From billing-api", crossProjectLabel("billing-api", 0.1, store.FactTypePreference, 0.25))
	require.Equal(t, "From billing-api", crossProjectLabel("billing-api", 0.3, store.FactTypeDecision, 0.25))
}

func TestTruncateAtGraphemeLeavesShortStringsUntouched(t *testing.T) {
	require.Equal(t, "hello", truncateAtGrapheme("hello", 10))
}

func TestTruncateAtGraphemeCutsAtClusterBoundaryWithEllipsis(t *testing.T) {
	out := truncateAtGrapheme("héllo wörld", 5)
	require.Equal(t, 6, len([]rune(out))) // 5 clusters + ellipsis rune
	require.True(t, strings.HasSuffix(out, "…"))
}

func TestTruncateAtGraphemeNeverSplitsACombiningCluster(t *testing.T) {
	// "e" + combining acute accent is one grapheme cluster even though it is
	// two runes - a naive rune-count truncation would split it in half.
	combining := "é"
	out := truncateAtGrapheme(combining+"xyz", 1)
	require.Equal(t, combining+"…", out)
}

func TestMergeCrossProjectFactsAttachesProjectAndTightLabel(t *testing.T) {
	f, _, _ := newTestFabric(t, nil, nil)
	byRef := map[string]*RecallHit{}

	f.mergeCrossProjectFacts(byRef, []store.FactMatch{
		{RefID: "fact-1", ProjectID: "other-proj", Distance: 0.1, FactType: store.FactTypeDecision, Statement: "use postgres for the ledger"},
	}, map[string]bool{}, "billing-api")

	hit, ok := byRef["fact-1"]
	require.True(t, ok)
	require.Equal(t, "other-proj", hit.ProjectID)
	require.True(t, hit.CrossProject)
	require.Equal(t, "You solved this in billing-api", hit.Label)
	require.Equal(t, "use postgres for the ledger", hit.Content)
}

func TestMergeCrossProjectFactsSkipsExcludedAndAlreadyPresent(t *testing.T) {
	f, _, _ := newTestFabric(t, nil, nil)
	byRef := map[string]*RecallHit{"fact-1": {RefID: "fact-1", Content: "already here"}}

	f.mergeCrossProjectFacts(byRef, []store.FactMatch{
		{RefID: "fact-1", ProjectID: "other-proj", Distance: 0.1, FactType: store.FactTypeDecision, Statement: "should not overwrite"},
		{RefID: "fact-2", ProjectID: "other-proj", Distance: 0.1, FactType: store.FactTypeDecision, Statement: "new"},
	}, map[string]bool{"fact-2": true}, "billing-api")

	require.Equal(t, "already here", byRef["fact-1"].Content)
	require.False(t, byRef["fact-1"].CrossProject)
	_, ok := byRef["fact-2"]
	require.False(t, ok)
}

func TestRecallCrossProjectFallsBackToBaseRecallWithoutVectorIndex(t *testing.T) {
	f, st, p := newTestFabric(t, &fakeEmbedder{dims: 8}, nil)
	sess, err := st.CreateSession(p.ID)
	require.NoError(t, err)
	require.NoError(t, st.AppendTurn(&store.Turn{SessionID: sess.ID, ProjectID: p.ID, Role: "user", Content: "hello there"}))

	hits, err := f.RecallCrossProject(context.Background(), RecallRequest{ProjectID: p.ID, Query: "hello"}, []string{"other-project"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.False(t, hits[0].CrossProject)
}
