package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// Server answers hook/IPC requests on every connection its Serve accept
// loop takes from a Listener. It is intentionally thin - most operations
// are one or two store calls, with the generic server_state KV table
// backing the handful of auxiliary entities (tasks, goals, error patterns)
// that spec.md's data model never promotes to first-class tables.
type Server struct {
	store *store.Store
}

func NewServer(st *store.Store) *Server {
	return &Server{store: st}
}

// Serve accepts connections from ln until ln is closed, handling each one
// on its own goroutine. A Unix-socket listener is provided by Listen on
// platforms that support it.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			_ = enc.Encode(errorResponse("", fmt.Errorf("malformed request: %w", err)))
			continue
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			logging.IPCDebug("write response failed: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	result, err := Dispatch(ctx, s.store, req.Op, req.Params)
	if err != nil {
		logging.IPCDebug("op %s failed: %v", req.Op, err)
		return errorResponse(req.ID, err)
	}
	return resultResponse(req.ID, result)
}

// Dispatch runs op directly against st, the same logic the socket server
// uses for every connection. internal/ipc/client's direct-DB fallback tier
// calls this to answer hook requests without a running daemon, so the two
// tiers can never drift out of sync with each other.
func Dispatch(ctx context.Context, st *store.Store, op string, params json.RawMessage) (interface{}, error) {
	handler, ok := handlers[op]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	return handler(ctx, st, params)
}

type handlerFunc func(ctx context.Context, st *store.Store, params json.RawMessage) (interface{}, error)

var handlers = map[string]handlerFunc{
	OpResolveProject:        handleResolveProject,
	OpRegisterSession:       handleRegisterSession,
	OpGetStartupContext:     handleGetStartupContext,
	OpGetResumeContext:      handleGetResumeContext,
	OpCloseSession:          handleCloseSession,
	OpSnapshotTasks:         handleSnapshotTasks,
	OpWriteClaudeLocalMD:    handleWriteClaudeLocalMD,
	OpGetActiveGoals:        handleGetActiveGoals,
	OpAutoLinkMilestone:     handleAutoLinkMilestone,
	OpStoreErrorPattern:     handleStoreErrorPattern,
	OpLookupResolvedPattern: handleLookupResolvedPattern,
	OpCountSessionFailures:  handleCountSessionFailures,
	OpResolveErrorPatterns:  handleResolveErrorPatterns,
	OpGetUserPromptContext:  handleGetUserPromptContext,
}

func unmarshalParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params")
	}
	return json.Unmarshal(params, v)
}

// --- session lifecycle -------------------------------------------------

type resolveProjectParams struct {
	RootPath string `json:"root_path"`
	Name     string `json:"name"`
}

func handleResolveProject(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p resolveProjectParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	proj, err := st.UpsertProject(p.RootPath, p.Name)
	if err != nil {
		return nil, err
	}
	return struct {
		ProjectID string `json:"project_id"`
	}{ProjectID: proj.ID}, nil
}

type registerSessionParams struct {
	ProjectID string `json:"project_id"`
	RootPath  string `json:"root_path"`
	Name      string `json:"name"`
	Source    string `json:"source"`
}

func handleRegisterSession(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p registerSessionParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	projectID := p.ProjectID
	if projectID == "" {
		proj, err := st.UpsertProject(p.RootPath, p.Name)
		if err != nil {
			return nil, err
		}
		projectID = proj.ID
	}

	sess, err := st.CreateSession(projectID)
	if err != nil {
		return nil, err
	}
	logging.IPC("registered session %s for project %s (source=%s)", sess.ID, projectID, p.Source)

	return struct {
		SessionID string `json:"session_id"`
		ProjectID string `json:"project_id"`
	}{SessionID: sess.ID, ProjectID: projectID}, nil
}

type sessionIDParams struct {
	SessionID string `json:"session_id"`
}

// handleGetStartupContext summarizes a session's recent turns and active
// facts into a block of text a hook can inject at the start of a fresh
// agent invocation.
func handleGetStartupContext(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p sessionIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	sess, err := st.GetSession(p.SessionID)
	if err != nil {
		return nil, err
	}

	facts, err := st.ActiveFacts(sess.ProjectID, 10)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if len(facts) == 0 {
		b.WriteString("No prior context recorded for this project.")
	} else {
		b.WriteString("Known context:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f.Statement)
		}
	}

	return struct {
		Context string `json:"context"`
	}{Context: b.String()}, nil
}

// handleGetResumeContext summarizes the most recent turns of a session for
// a hook resuming an interrupted conversation.
func handleGetResumeContext(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p sessionIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	turns, err := st.RecentTurns(p.SessionID, 10)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if len(turns) == 0 {
		b.WriteString("No prior turns to resume from.")
	} else {
		b.WriteString("Recent turns:\n")
		for i := len(turns) - 1; i >= 0; i-- {
			fmt.Fprintf(&b, "[%s] %s\n", turns[i].Role, turns[i].Content)
		}
	}

	return struct {
		Context string `json:"context"`
	}{Context: b.String()}, nil
}

func handleCloseSession(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p sessionIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := st.EndSession(p.SessionID); err != nil {
		return nil, err
	}
	return struct {
		Closed bool `json:"closed"`
	}{Closed: true}, nil
}

// --- auxiliary project state --------------------------------------------
//
// Tasks, goals, milestones, and error patterns have no dedicated schema -
// spec.md's data model never promotes them to first-class tables, and the
// distilled original_source carries only the client side of these calls.
// They are backed by the generic server_state key/value table, namespaced
// per project, storing small JSON documents.

func stateKey(namespace, projectID string) string {
	return namespace + ":" + projectID
}

func loadJSONState(st *store.Store, key string, v interface{}) error {
	raw, ok, err := st.GetState(key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func saveJSONState(st *store.Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return st.SetState(key, string(raw))
}

type projectIDParams struct {
	ProjectID string `json:"project_id"`
}

func handleSnapshotTasks(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p projectIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	var tasks []json.RawMessage
	if err := loadJSONState(st, stateKey("tasks", p.ProjectID), &tasks); err != nil {
		return nil, err
	}
	return struct {
		Tasks []json.RawMessage `json:"tasks"`
	}{Tasks: tasks}, nil
}

type writeClaudeLocalMDParams struct {
	ProjectID string `json:"project_id"`
	Content   string `json:"content"`
}

func handleWriteClaudeLocalMD(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p writeClaudeLocalMDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := st.SetState(stateKey("claude_local_md", p.ProjectID), p.Content); err != nil {
		return nil, err
	}
	return struct {
		Written bool `json:"written"`
	}{Written: true}, nil
}

func handleGetActiveGoals(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p projectIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	var goals []json.RawMessage
	if err := loadJSONState(st, stateKey("goals", p.ProjectID), &goals); err != nil {
		return nil, err
	}
	return struct {
		Goals []json.RawMessage `json:"goals"`
	}{Goals: goals}, nil
}

type autoLinkMilestoneParams struct {
	ProjectID   string `json:"project_id"`
	GoalID      string `json:"goal_id"`
	Description string `json:"description"`
}

func handleAutoLinkMilestone(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p autoLinkMilestoneParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	key := stateKey("milestones", p.ProjectID+":"+p.GoalID)
	var milestones []milestoneRecord
	if err := loadJSONState(st, key, &milestones); err != nil {
		return nil, err
	}
	milestones = append(milestones, milestoneRecord{
		Description: p.Description,
		LinkedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err := saveJSONState(st, key, milestones); err != nil {
		return nil, err
	}

	return struct {
		Linked bool `json:"linked"`
		Count  int  `json:"count"`
	}{Linked: true, Count: len(milestones)}, nil
}

type milestoneRecord struct {
	Description string `json:"description"`
	LinkedAt    string `json:"linked_at"`
}

type storeErrorPatternParams struct {
	ProjectID  string `json:"project_id"`
	Pattern    string `json:"pattern"`
	Resolution string `json:"resolution"`
}

type errorPatternRecord struct {
	Resolution string `json:"resolution"`
	Resolved   bool   `json:"resolved"`
}

func handleStoreErrorPattern(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p storeErrorPatternParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	key := stateKey("error_patterns", p.ProjectID)
	patterns := map[string]errorPatternRecord{}
	if err := loadJSONState(st, key, &patterns); err != nil {
		return nil, err
	}
	patterns[p.Pattern] = errorPatternRecord{Resolution: p.Resolution, Resolved: p.Resolution != ""}
	if err := saveJSONState(st, key, patterns); err != nil {
		return nil, err
	}

	return struct {
		Stored bool `json:"stored"`
	}{Stored: true}, nil
}

type lookupResolvedPatternParams struct {
	ProjectID string `json:"project_id"`
	Pattern   string `json:"pattern"`
}

func handleLookupResolvedPattern(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p lookupResolvedPatternParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	patterns := map[string]errorPatternRecord{}
	if err := loadJSONState(st, stateKey("error_patterns", p.ProjectID), &patterns); err != nil {
		return nil, err
	}

	rec, found := patterns[p.Pattern]
	return struct {
		Found      bool   `json:"found"`
		Resolution string `json:"resolution,omitempty"`
	}{Found: found && rec.Resolved, Resolution: rec.Resolution}, nil
}

func handleCountSessionFailures(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p sessionIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	turns, err := st.RecentTurns(p.SessionID, 200)
	if err != nil {
		return nil, err
	}

	count := 0
	for _, t := range turns {
		if t.Role == "tool" && strings.Contains(strings.ToLower(t.Content), "error") {
			count++
		}
	}

	return struct {
		Count int `json:"count"`
	}{Count: count}, nil
}

func handleResolveErrorPatterns(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p projectIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	key := stateKey("error_patterns", p.ProjectID)
	patterns := map[string]errorPatternRecord{}
	if err := loadJSONState(st, key, &patterns); err != nil {
		return nil, err
	}

	resolved := 0
	for pattern, rec := range patterns {
		if rec.Resolved {
			resolved++
			continue
		}
		delete(patterns, pattern)
	}
	if err := saveJSONState(st, key, patterns); err != nil {
		return nil, err
	}

	return struct {
		Resolved int `json:"resolved"`
	}{Resolved: resolved}, nil
}

func handleGetUserPromptContext(_ context.Context, st *store.Store, params json.RawMessage) (interface{}, error) {
	var p projectIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	facts, err := st.ActiveFacts(p.ProjectID, 5)
	if err != nil {
		return nil, err
	}

	localMD, ok, err := st.GetState(stateKey("claude_local_md", p.ProjectID))
	if err != nil {
		return nil, err
	}
	if !ok {
		localMD = ""
	}

	var b strings.Builder
	for _, f := range facts {
		fmt.Fprintf(&b, "- %s\n", f.Statement)
	}
	if localMD != "" {
		b.WriteString(localMD)
	}

	return struct {
		Context string `json:"context"`
	}{Context: b.String()}, nil
}
