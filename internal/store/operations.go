package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ConaryLabs/mira/internal/ids"
)

type Operation struct {
	ID          string
	ProjectID   string
	SessionID   sql.NullString
	Kind        string
	Status      string
	Plan        string
	Result      sql.NullString
	Error       sql.NullString
	CreatedAt   time.Time
	CompletedAt sql.NullTime
}

func (s *Store) CreateOperation(projectID string, sessionID sql.NullString, kind, plan string) (*Operation, error) {
	op := &Operation{ID: ids.New().String(), ProjectID: projectID, SessionID: sessionID, Kind: kind, Status: "pending", Plan: plan}
	_, err := s.db.Exec(
		`INSERT INTO operations(id, project_id, session_id, kind, status, plan) VALUES (?, ?, ?, ?, ?, ?)`,
		op.ID, op.ProjectID, op.SessionID, op.Kind, op.Status, op.Plan,
	)
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (s *Store) SetOperationStatus(id, status string) error {
	if status == "completed" || status == "failed" {
		_, err := s.db.Exec(`UPDATE operations SET status = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
		return err
	}
	_, err := s.db.Exec(`UPDATE operations SET status = ? WHERE id = ?`, status, id)
	return err
}

// CompleteOperation sets status=completed and the result payload, in one
// write alongside completed_at - result and error are mutually exclusive
// terminal fields.
func (s *Store) CompleteOperation(id, result string) error {
	_, err := s.db.Exec(
		`UPDATE operations SET status = 'completed', result = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		result, id,
	)
	return err
}

// FailOperation sets status=failed and the error payload, in one write
// alongside completed_at.
func (s *Store) FailOperation(id, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE operations SET status = 'failed', error = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		errMsg, id,
	)
	return err
}

func (s *Store) GetOperation(id string) (*Operation, error) {
	var op Operation
	err := s.db.QueryRow(
		`SELECT id, project_id, session_id, kind, status, plan, result, error, created_at, completed_at FROM operations WHERE id = ?`, id,
	).Scan(&op.ID, &op.ProjectID, &op.SessionID, &op.Kind, &op.Status, &op.Plan, &op.Result, &op.Error, &op.CreatedAt, &op.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

type OperationEvent struct {
	ID          string
	OperationID string
	Seq         int
	Kind        string
	Payload     string
	CreatedAt   time.Time
}

// AppendOperationEvent assigns the next strictly-increasing sequence number
// for the operation inside the same transaction as the insert, so concurrent
// appends to the same operation never race on seq (spec.md §5/§8: the
// journal is the one place ordering must be exact).
func (s *Store) AppendOperationEvent(operationID, kind, payload string) (*OperationEvent, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(seq) FROM operation_events WHERE operation_id = ?`, operationID).Scan(&maxSeq); err != nil {
		return nil, err
	}
	next := 1
	if maxSeq.Valid {
		next = int(maxSeq.Int64) + 1
	}

	ev := &OperationEvent{ID: ids.New().String(), OperationID: operationID, Seq: next, Kind: kind, Payload: payload}
	if _, err := tx.Exec(
		`INSERT INTO operation_events(id, operation_id, seq, kind, payload) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.OperationID, ev.Seq, ev.Kind, ev.Payload,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ev, nil
}

// OperationEvents returns the full journal for an operation in sequence
// order, the shape a reconnecting subscriber replays on join.
func (s *Store) OperationEvents(operationID string) ([]OperationEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, operation_id, seq, kind, payload, created_at FROM operation_events WHERE operation_id = ? ORDER BY seq ASC`, operationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OperationEvent
	for rows.Next() {
		var ev OperationEvent
		if err := rows.Scan(&ev.ID, &ev.OperationID, &ev.Seq, &ev.Kind, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// UnscannedDiffOperations returns completed "diff" operations in projectID
// since cutoff that have no diff_outcomes row yet - the outcome scanner's
// work unit.
func (s *Store) UnscannedDiffOperations(projectID string, since time.Time) ([]Operation, error) {
	rows, err := s.db.Query(`
SELECT o.id, o.project_id, o.session_id, o.kind, o.status, o.plan, o.created_at, o.completed_at
FROM operations o
WHERE o.project_id = ?
  AND o.kind = 'diff'
  AND o.status = 'completed'
  AND o.completed_at >= ?
  AND NOT EXISTS (SELECT 1 FROM diff_outcomes d WHERE d.operation_id = o.id)
ORDER BY o.completed_at`, projectID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.ProjectID, &op.SessionID, &op.Kind, &op.Status, &op.Plan, &op.CreatedAt, &op.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *Store) RecordDiffOutcome(operationID, projectID, outcome string) error {
	_, err := s.db.Exec(
		`INSERT INTO diff_outcomes(id, operation_id, project_id, outcome) VALUES (?, ?, ?, ?)`,
		ids.New().String(), operationID, projectID, outcome,
	)
	return err
}

// RecordDiffPattern bumps a recurring-failure pattern's occurrence count so
// the outcome-scanner worker can surface repeated mistakes.
func (s *Store) RecordDiffPattern(projectID, pattern string) error {
	res, err := s.db.Exec(
		`UPDATE diff_patterns SET occurrences = occurrences + 1, last_seen_at = CURRENT_TIMESTAMP
		 WHERE project_id = ? AND pattern = ?`,
		projectID, pattern,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.Exec(
		`INSERT INTO diff_patterns(id, project_id, pattern) VALUES (?, ?, ?)`,
		ids.New().String(), projectID, pattern,
	)
	return err
}
