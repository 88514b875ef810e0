package sudo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/store"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func newTestAuthorizer(t *testing.T) (*Authorizer, *store.Store, *store.Project) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	proj, err := st.UpsertProject("/tmp/sudo-test", "test")
	require.NoError(t, err)

	cfg := config.SudoConfig{ApprovalExpiry: 5 * time.Minute, SweepInterval: 30 * time.Second}
	return New(st, cfg), st, proj
}

func TestCheckAllowsExactMatch(t *testing.T) {
	auth, st, proj := newTestAuthorizer(t)
	require.NoError(t, st.AddPermission(&store.SudoPermission{
		ProjectID: nullString(proj.ID), Pattern: "ls -la", MatchKind: "exact", Action: "allow",
	}))

	decision, err := auth.Check(context.Background(), proj.ID, "ls -la")
	require.NoError(t, err)
	require.Equal(t, "allowed", decision.Kind)
	require.NotEmpty(t, decision.PermissionID)
}

func TestCheckRequiresApprovalCreatesRequest(t *testing.T) {
	auth, st, proj := newTestAuthorizer(t)
	require.NoError(t, st.AddPermission(&store.SudoPermission{
		ProjectID: nullString(proj.ID), Pattern: "^rm ", MatchKind: "regex", Action: "require_approval",
	}))

	decision, err := auth.Check(context.Background(), proj.ID, "rm -rf build/")
	require.NoError(t, err)
	require.Equal(t, "requires_approval", decision.Kind)
	require.NotEmpty(t, decision.ApprovalID)

	approval, err := st.GetApproval(decision.ApprovalID)
	require.NoError(t, err)
	require.Equal(t, "pending", approval.Status)
	require.Equal(t, "rm -rf build/", approval.Command)
}

func TestCheckDeniesWithNoMatchingRule(t *testing.T) {
	auth, _, proj := newTestAuthorizer(t)

	decision, err := auth.Check(context.Background(), proj.ID, "curl evil.example")
	require.NoError(t, err)
	require.Equal(t, "denied", decision.Kind)
	require.NotEmpty(t, decision.Reason)
}

func TestCheckDeniesOnMatchedDenyRule(t *testing.T) {
	auth, st, proj := newTestAuthorizer(t)
	require.NoError(t, st.AddPermission(&store.SudoPermission{
		ProjectID: nullString(proj.ID), Pattern: "sudo ", MatchKind: "prefix", Action: "deny",
	}))

	decision, err := auth.Check(context.Background(), proj.ID, "sudo rm -rf /")
	require.NoError(t, err)
	require.Equal(t, "denied", decision.Kind)
}

func TestCheckPrefersExactOverPrefixRule(t *testing.T) {
	auth, st, proj := newTestAuthorizer(t)
	require.NoError(t, st.AddPermission(&store.SudoPermission{
		ProjectID: nullString(proj.ID), Pattern: "git", MatchKind: "prefix", Action: "require_approval",
	}))
	require.NoError(t, st.AddPermission(&store.SudoPermission{
		ProjectID: nullString(proj.ID), Pattern: "git status", MatchKind: "exact", Action: "allow",
	}))

	decision, err := auth.Check(context.Background(), proj.ID, "git status")
	require.NoError(t, err)
	require.Equal(t, "allowed", decision.Kind)
}

func TestCheckPrefersProjectScopedOverGlobalRule(t *testing.T) {
	auth, st, proj := newTestAuthorizer(t)
	require.NoError(t, st.AddPermission(&store.SudoPermission{
		Pattern: "npm", MatchKind: "prefix", Action: "deny",
	}))
	require.NoError(t, st.AddPermission(&store.SudoPermission{
		ProjectID: nullString(proj.ID), Pattern: "npm", MatchKind: "prefix", Action: "allow",
	}))

	decision, err := auth.Check(context.Background(), proj.ID, "npm test")
	require.NoError(t, err)
	require.Equal(t, "allowed", decision.Kind)
}

func TestResolveApprovalGranted(t *testing.T) {
	auth, st, proj := newTestAuthorizer(t)
	require.NoError(t, st.AddPermission(&store.SudoPermission{
		ProjectID: nullString(proj.ID), Pattern: "^make ", MatchKind: "regex", Action: "require_approval",
	}))

	decision, err := auth.Check(context.Background(), proj.ID, "make deploy")
	require.NoError(t, err)

	require.NoError(t, auth.Resolve(context.Background(), proj.ID, decision.ApprovalID, true))

	approval, err := st.GetApproval(decision.ApprovalID)
	require.NoError(t, err)
	require.Equal(t, "approved", approval.Status)
	require.True(t, approval.ResolvedAt.Valid)
}

func TestSweepExpiredMarksPastDeadlineApprovals(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	proj, err := st.UpsertProject("/tmp/sudo-sweep", "test")
	require.NoError(t, err)

	_, err = st.CreateApproval(proj.ID, "rm -rf /tmp/x", -time.Second)
	require.NoError(t, err)

	auth := New(st, config.SudoConfig{ApprovalExpiry: 5 * time.Minute, SweepInterval: 30 * time.Second})
	n, err := auth.SweepExpired()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestIsApprovalExpired(t *testing.T) {
	now := time.Now()
	expired := &store.SudoApproval{Status: "pending", ExpiresAt: now.Add(-time.Minute)}
	require.True(t, IsApprovalExpired(expired, now))

	fresh := &store.SudoApproval{Status: "pending", ExpiresAt: now.Add(time.Minute)}
	require.False(t, IsApprovalExpired(fresh, now))

	resolved := &store.SudoApproval{Status: "approved", ExpiresAt: now.Add(-time.Minute)}
	require.False(t, IsApprovalExpired(resolved, now))
}
