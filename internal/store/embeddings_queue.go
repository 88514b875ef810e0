package store

import (
	"fmt"

	"github.com/ConaryLabs/mira/internal/ids"
)

// PendingEmbedding is one row of work for the embedding-batch worker.
type PendingEmbedding struct {
	ID        string
	Kind      string // "turn" | "symbol" | "fact"
	RefID     string
	ProjectID string
	Text      string
}

// EnqueueEmbedding adds ref to the embedding queue. Safe to call repeatedly;
// callers are expected to check has_embedding before enqueueing, so no
// dedup is attempted here.
func (s *Store) EnqueueEmbedding(kind, refID, projectID, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO pending_embeddings(id, kind, ref_id, project_id, text) VALUES (?, ?, ?, ?, ?)`,
		ids.New().String(), kind, refID, projectID, text,
	)
	return err
}

// DequeueEmbeddings pops up to max pending rows in FIFO order for the
// embedding-batch worker to process in one pass.
func (s *Store) DequeueEmbeddings(max int) ([]PendingEmbedding, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, ref_id, project_id, text FROM pending_embeddings ORDER BY enqueued_at ASC LIMIT ?`, max,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingEmbedding
	for rows.Next() {
		var p PendingEmbedding
		if err := rows.Scan(&p.ID, &p.Kind, &p.RefID, &p.ProjectID, &p.Text); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CompleteEmbedding removes the queue row and marks the source row embedded.
func (s *Store) CompleteEmbedding(p PendingEmbedding) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch p.Kind {
	case "turn":
		if _, err := tx.Exec(`UPDATE turns SET has_embedding = 1 WHERE id = ?`, p.RefID); err != nil {
			return err
		}
	case "symbol":
		if _, err := tx.Exec(`UPDATE code_symbols SET has_embedding = 1 WHERE id = ?`, p.RefID); err != nil {
			return err
		}
	case "fact":
		if _, err := tx.Exec(`UPDATE memory_facts SET has_embedding = 1 WHERE id = ?`, p.RefID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown pending embedding kind %q", p.Kind)
	}
	if _, err := tx.Exec(`DELETE FROM pending_embeddings WHERE id = ?`, p.ID); err != nil {
		return err
	}
	return tx.Commit()
}
