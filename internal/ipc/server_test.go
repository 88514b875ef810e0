package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/store"
)

func newTestServer(t *testing.T) (net.Listener, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sockPath := filepath.Join(t.TempDir(), "mira.sock")
	ln, err := Listen(sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv := NewServer(st)
	go srv.Serve(ln)

	return ln, st
}

func roundTrip(t *testing.T, ln net.Listener, req Request) Response {
	t.Helper()
	conn, err := net.Dial(ln.Addr().Network(), ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	_, err = conn.Write(append(raw, '\n'))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())

	var resp Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	return resp
}

func TestResolveProjectOverSocket(t *testing.T) {
	ln, _ := newTestServer(t)

	params, _ := json.Marshal(resolveProjectParams{RootPath: "/tmp/proj", Name: "proj"})
	resp := roundTrip(t, ln, Request{ID: "1", Op: OpResolveProject, Params: params})

	require.Empty(t, resp.Error)
	var result struct {
		ProjectID string `json:"project_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.NotEmpty(t, result.ProjectID)
}

func TestRegisterSessionThenCloseSession(t *testing.T) {
	ln, _ := newTestServer(t)

	regParams, _ := json.Marshal(registerSessionParams{RootPath: "/tmp/proj2", Name: "proj2", Source: "hook"})
	regResp := roundTrip(t, ln, Request{ID: "1", Op: OpRegisterSession, Params: regParams})
	require.Empty(t, regResp.Error)

	var reg struct {
		SessionID string `json:"session_id"`
		ProjectID string `json:"project_id"`
	}
	require.NoError(t, json.Unmarshal(regResp.Result, &reg))
	require.NotEmpty(t, reg.SessionID)

	closeParams, _ := json.Marshal(sessionIDParams{SessionID: reg.SessionID})
	closeResp := roundTrip(t, ln, Request{ID: "2", Op: OpCloseSession, Params: closeParams})
	require.Empty(t, closeResp.Error)
}

func TestUnknownOperationReturnsError(t *testing.T) {
	ln, _ := newTestServer(t)

	resp := roundTrip(t, ln, Request{ID: "1", Op: "not_a_real_op"})
	require.NotEmpty(t, resp.Error)
}

func TestErrorPatternStoreLookupRoundTrip(t *testing.T) {
	ln, _ := newTestServer(t)

	projParams, _ := json.Marshal(resolveProjectParams{RootPath: "/tmp/proj3", Name: "proj3"})
	projResp := roundTrip(t, ln, Request{ID: "1", Op: OpResolveProject, Params: projParams})
	var proj struct {
		ProjectID string `json:"project_id"`
	}
	require.NoError(t, json.Unmarshal(projResp.Result, &proj))

	storeParams, _ := json.Marshal(storeErrorPatternParams{
		ProjectID: proj.ProjectID, Pattern: "ECONNREFUSED", Resolution: "restart the daemon",
	})
	storeResp := roundTrip(t, ln, Request{ID: "2", Op: OpStoreErrorPattern, Params: storeParams})
	require.Empty(t, storeResp.Error)

	lookupParams, _ := json.Marshal(lookupResolvedPatternParams{ProjectID: proj.ProjectID, Pattern: "ECONNREFUSED"})
	lookupResp := roundTrip(t, ln, Request{ID: "3", Op: OpLookupResolvedPattern, Params: lookupParams})
	require.Empty(t, lookupResp.Error)

	var lookup struct {
		Found      bool   `json:"found"`
		Resolution string `json:"resolution"`
	}
	require.NoError(t, json.Unmarshal(lookupResp.Result, &lookup))
	require.True(t, lookup.Found)
	require.Equal(t, "restart the daemon", lookup.Resolution)

	missParams, _ := json.Marshal(lookupResolvedPatternParams{ProjectID: proj.ProjectID, Pattern: "unseen"})
	missResp := roundTrip(t, ln, Request{ID: "4", Op: OpLookupResolvedPattern, Params: missParams})
	var miss struct {
		Found bool `json:"found"`
	}
	require.NoError(t, json.Unmarshal(missResp.Result, &miss))
	require.False(t, miss.Found)
}

func TestAutoLinkMilestoneAccumulates(t *testing.T) {
	ln, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		params, _ := json.Marshal(autoLinkMilestoneParams{
			ProjectID: "proj4", GoalID: "goal1", Description: fmt.Sprintf("step %d", i),
		})
		resp := roundTrip(t, ln, Request{ID: "1", Op: OpAutoLinkMilestone, Params: params})
		require.Empty(t, resp.Error)
	}

	params, _ := json.Marshal(autoLinkMilestoneParams{ProjectID: "proj4", GoalID: "goal1", Description: "final"})
	resp := roundTrip(t, ln, Request{ID: "2", Op: OpAutoLinkMilestone, Params: params})
	var result struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, 4, result.Count)
}
