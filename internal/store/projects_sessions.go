package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ConaryLabs/mira/internal/ids"
)

// ErrNotFound is returned by lookups with no matching row.
var ErrNotFound = errors.New("store: not found")

type Project struct {
	ID         string
	RootPath   string
	Name       string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// UpsertProject finds a project by root path, touching last_seen_at, or
// creates one if this is the first time the orchestrator has seen this path.
func (s *Store) UpsertProject(rootPath, name string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Project
	err := s.db.QueryRow(`SELECT id, root_path, name, created_at, last_seen_at FROM projects WHERE root_path = ?`, rootPath).
		Scan(&p.ID, &p.RootPath, &p.Name, &p.CreatedAt, &p.LastSeenAt)
	if err == nil {
		if _, err := s.db.Exec(`UPDATE projects SET last_seen_at = CURRENT_TIMESTAMP WHERE id = ?`, p.ID); err != nil {
			return nil, err
		}
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	p = Project{ID: ids.New().String(), RootPath: rootPath, Name: name}
	if _, err := s.db.Exec(`INSERT INTO projects(id, root_path, name) VALUES (?, ?, ?)`, p.ID, p.RootPath, p.Name); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns every known project, most recently seen first - the
// scheduler's per-project workers (code-health, outcome scanner, pondering,
// briefings) iterate this to pick one project per tick.
func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT id, root_path, name, created_at, last_seen_at FROM projects ORDER BY last_seen_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.RootPath, &p.Name, &p.CreatedAt, &p.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProject(id string) (*Project, error) {
	var p Project
	err := s.db.QueryRow(`SELECT id, root_path, name, created_at, last_seen_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.RootPath, &p.Name, &p.CreatedAt, &p.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type Session struct {
	ID         string
	ProjectID  string
	StartedAt  time.Time
	LastTurnAt time.Time
	EndedAt    sql.NullTime
	Status     string
}

func (s *Store) CreateSession(projectID string) (*Session, error) {
	sess := &Session{ID: ids.New().String(), ProjectID: projectID, Status: "active"}
	if _, err := s.db.Exec(`INSERT INTO sessions(id, project_id) VALUES (?, ?)`, sess.ID, sess.ProjectID); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`INSERT INTO session_chain_state(session_id) VALUES (?)`, sess.ID); err != nil {
		return nil, fmt.Errorf("init chain state: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(`SELECT id, project_id, started_at, last_turn_at, ended_at, status FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.ProjectID, &sess.StartedAt, &sess.LastTurnAt, &sess.EndedAt, &sess.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) TouchSession(id string) error {
	_, err := s.db.Exec(`UPDATE sessions SET last_turn_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

func (s *Store) EndSession(id string) error {
	_, err := s.db.Exec(`UPDATE sessions SET status = 'ended', ended_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// IdleSessionsBefore lists sessions whose last_turn_at is older than cutoff,
// for the scheduler's session-cleanup worker.
func (s *Store) IdleSessionsBefore(cutoff time.Time) ([]Session, error) {
	rows, err := s.db.Query(`SELECT id, project_id, started_at, last_turn_at, ended_at, status FROM sessions WHERE status = 'active' AND last_turn_at < ?`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.ProjectID, &sess.StartedAt, &sess.LastTurnAt, &sess.EndedAt, &sess.Status); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ChainState is the persisted reset-hysteresis counter set for a session.
// LastInputTokens/LastOutputTokens/LastCachePct are the provider's actually
// reported usage from the previous turn's response, not an estimate of the
// turn about to be sent - DecideReset for the *next* turn reads these back.
type ChainState struct {
	SessionID         string
	ConsecutiveOver   int
	CooldownRemaining int
	LastTokenEstimate int
	LastResetKind     string
	LastInputTokens   int
	LastOutputTokens  int
	LastCachePct      int
}

func (s *Store) GetChainState(sessionID string) (*ChainState, error) {
	var cs ChainState
	err := s.db.QueryRow(
		`SELECT session_id, consecutive_over, cooldown_remaining, last_token_estimate, last_reset_kind,
			last_input_tokens, last_output_tokens, last_cache_pct
		 FROM session_chain_state WHERE session_id = ?`, sessionID,
	).Scan(&cs.SessionID, &cs.ConsecutiveOver, &cs.CooldownRemaining, &cs.LastTokenEstimate, &cs.LastResetKind,
		&cs.LastInputTokens, &cs.LastOutputTokens, &cs.LastCachePct)
	if errors.Is(err, sql.ErrNoRows) {
		return &ChainState{SessionID: sessionID, LastCachePct: 100}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

func (s *Store) SaveChainState(cs *ChainState) error {
	_, err := s.db.Exec(
		`INSERT INTO session_chain_state(session_id, consecutive_over, cooldown_remaining, last_token_estimate, last_reset_kind,
			last_input_tokens, last_output_tokens, last_cache_pct, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_id) DO UPDATE SET
			consecutive_over = excluded.consecutive_over,
			cooldown_remaining = excluded.cooldown_remaining,
			last_token_estimate = excluded.last_token_estimate,
			last_reset_kind = excluded.last_reset_kind,
			last_input_tokens = excluded.last_input_tokens,
			last_output_tokens = excluded.last_output_tokens,
			last_cache_pct = excluded.last_cache_pct,
			updated_at = CURRENT_TIMESTAMP`,
		cs.SessionID, cs.ConsecutiveOver, cs.CooldownRemaining, cs.LastTokenEstimate, cs.LastResetKind,
		cs.LastInputTokens, cs.LastOutputTokens, cs.LastCachePct,
	)
	return err
}

type Turn struct {
	ID            string
	SessionID     string
	ProjectID     string
	Role          string
	Content       string
	TokenEstimate int
	Salience      float64
	HasEmbedding  bool
	CreatedAt     time.Time
}

func (s *Store) AppendTurn(t *Turn) error {
	if t.ID == "" {
		t.ID = ids.New().String()
	}
	if _, err := s.db.Exec(
		`INSERT INTO turns(id, session_id, project_id, role, content, token_estimate, salience) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.ProjectID, t.Role, t.Content, t.TokenEstimate, t.Salience,
	); err != nil {
		return err
	}
	return s.TouchSession(t.SessionID)
}

// RecentTurns returns the last n turns of a session in chronological order.
func (s *Store) RecentTurns(sessionID string, n int) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, project_id, role, content, token_estimate, salience, has_embedding, created_at
		 FROM turns WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`, sessionID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.ProjectID, &t.Role, &t.Content, &t.TokenEstimate, &t.Salience, &t.HasEmbedding, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}
