package store

import (
	"database/sql"
	"time"

	"github.com/ConaryLabs/mira/internal/ids"
)

type SudoPermission struct {
	ID        string
	ProjectID sql.NullString
	Pattern   string
	MatchKind string // "exact" | "regex" | "prefix"
	Action    string // "allow" | "require_approval" | "deny"
}

// MatchingPermissions returns project-scoped rules before global ones, the
// precedence order spec.md's authorization check relies on.
func (s *Store) MatchingPermissions(projectID string) ([]SudoPermission, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, pattern, match_kind, action FROM sudo_permissions
		 WHERE project_id = ? OR project_id IS NULL
		 ORDER BY (project_id IS NULL) ASC, created_at ASC`, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SudoPermission
	for rows.Next() {
		var p SudoPermission
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Pattern, &p.MatchKind, &p.Action); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddPermission(p *SudoPermission) error {
	if p.ID == "" {
		p.ID = ids.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO sudo_permissions(id, project_id, pattern, match_kind, action) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.ProjectID, p.Pattern, p.MatchKind, p.Action,
	)
	return err
}

type SudoApproval struct {
	ID         string
	ProjectID  string
	Command    string
	Status     string // "pending" | "approved" | "denied" | "expired"
	RequestedAt time.Time
	ExpiresAt  time.Time
	ResolvedAt sql.NullTime
}

func (s *Store) CreateApproval(projectID, command string, ttl time.Duration) (*SudoApproval, error) {
	a := &SudoApproval{
		ID:        ids.New().String(),
		ProjectID: projectID,
		Command:   command,
		Status:    "pending",
		ExpiresAt: time.Now().Add(ttl),
	}
	_, err := s.db.Exec(
		`INSERT INTO sudo_approvals(id, project_id, command, status, expires_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, a.Command, a.Status, a.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) ResolveApproval(id, status string) error {
	_, err := s.db.Exec(
		`UPDATE sudo_approvals SET status = ?, resolved_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'pending'`,
		status, id,
	)
	return err
}

// ExpirePendingApprovals marks any pending approval past its expires_at as
// expired; the sudo approval sweep calls this on SweepInterval.
func (s *Store) ExpirePendingApprovals() (int, error) {
	res, err := s.db.Exec(
		`UPDATE sudo_approvals SET status = 'expired', resolved_at = CURRENT_TIMESTAMP
		 WHERE status = 'pending' AND expires_at < CURRENT_TIMESTAMP`,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) GetApproval(id string) (*SudoApproval, error) {
	var a SudoApproval
	err := s.db.QueryRow(
		`SELECT id, project_id, command, status, requested_at, expires_at, resolved_at FROM sudo_approvals WHERE id = ?`, id,
	).Scan(&a.ID, &a.ProjectID, &a.Command, &a.Status, &a.RequestedAt, &a.ExpiresAt, &a.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) AppendAudit(projectID, command, decision, reason string) error {
	_, err := s.db.Exec(
		`INSERT INTO sudo_audit_log(id, project_id, command, decision, reason) VALUES (?, ?, ?, ?, ?)`,
		ids.New().String(), projectID, command, decision, reason,
	)
	return err
}
