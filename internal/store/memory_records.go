package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/ConaryLabs/mira/internal/ids"
)

// Allowed Scope, FactType, and Status values, per spec.md §3/§4.2.
const (
	FactScopeProject = "project"
	FactScopeGlobal  = "global"
	FactScopeTeam    = "team"

	FactTypeGeneral    = "general"
	FactTypePreference = "preference"
	FactTypeDecision   = "decision"
	FactTypePattern    = "pattern"
	FactTypeContext    = "context"

	FactStatusActive   = "active"
	FactStatusArchived = "archived"
)

type MemoryFact struct {
	ID           string
	ProjectID    string
	SourceTurnID sql.NullString
	Statement    string
	Confidence   float64
	ContentHash  string
	Scope        string
	FactType     string
	Category     sql.NullString
	Status       string
	Suspicious   bool
	HasEntities  bool
	HasEmbedding bool
	CreatedAt    time.Time
	ArchivedAt   sql.NullTime
}

func hashStatement(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// InsertFact stores a fact, deduplicating on (project_id, content_hash): a
// second insert of the same statement bumps confidence toward 1 instead of
// creating a duplicate row. Scope/FactType/Status default to "project",
// "general", and "active" respectively when left unset, so callers that
// only care about the statement (pondering, briefings) don't have to spell
// out every attribute spec.md §3 defines for a Memory Fact.
func (s *Store) InsertFact(f *MemoryFact) (*MemoryFact, error) {
	if f.ID == "" {
		f.ID = ids.New().String()
	}
	f.ContentHash = hashStatement(f.Statement)
	if f.Scope == "" {
		f.Scope = FactScopeProject
	}
	if f.FactType == "" {
		f.FactType = FactTypeGeneral
	}
	if f.Status == "" {
		f.Status = FactStatusActive
	}

	_, err := s.db.Exec(
		`INSERT INTO memory_facts(id, project_id, source_turn_id, statement, confidence, content_hash, scope, fact_type, category, status, suspicious, has_entities)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, content_hash) DO UPDATE SET
			confidence = MIN(1.0, memory_facts.confidence + 0.1 * (1.0 - memory_facts.confidence))`,
		f.ID, f.ProjectID, f.SourceTurnID, f.Statement, f.Confidence, f.ContentHash,
		f.Scope, f.FactType, f.Category, f.Status, f.Suspicious, f.HasEntities,
	)
	if err != nil {
		return nil, err
	}

	var out MemoryFact
	err = s.db.QueryRow(
		`SELECT id, project_id, source_turn_id, statement, confidence, content_hash, scope, fact_type, category, status, suspicious, has_entities, has_embedding, created_at, archived_at
		 FROM memory_facts WHERE project_id = ? AND content_hash = ?`, f.ProjectID, f.ContentHash,
	).Scan(&out.ID, &out.ProjectID, &out.SourceTurnID, &out.Statement, &out.Confidence, &out.ContentHash,
		&out.Scope, &out.FactType, &out.Category, &out.Status, &out.Suspicious, &out.HasEntities, &out.HasEmbedding, &out.CreatedAt, &out.ArchivedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveFacts returns non-archived facts for a project ordered by confidence.
func (s *Store) ActiveFacts(projectID string, limit int) ([]MemoryFact, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, source_turn_id, statement, confidence, content_hash, scope, fact_type, category, status, suspicious, has_entities, has_embedding, created_at, archived_at
		 FROM memory_facts WHERE project_id = ? AND archived_at IS NULL ORDER BY confidence DESC LIMIT ?`, projectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemoryFact
	for rows.Next() {
		var f MemoryFact
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.SourceTurnID, &f.Statement, &f.Confidence, &f.ContentHash,
			&f.Scope, &f.FactType, &f.Category, &f.Status, &f.Suspicious, &f.HasEntities, &f.HasEmbedding, &f.CreatedAt, &f.ArchivedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DecayFacts lowers confidence for facts created before cutoff and archives
// any that fall below floor, per spec.md's decay/archival invariant. Status
// is flipped to "archived" alongside archived_at so status-filtered queries
// (e.g. cross-project recall's scope='project' AND status='active'
// predicate) stop seeing a fact the moment it's archived.
func (s *Store) DecayFacts(projectID string, cutoff time.Time, step, floor float64) (int, error) {
	res, err := s.db.Exec(
		`UPDATE memory_facts SET confidence = MAX(0, confidence - ?)
		 WHERE project_id = ? AND archived_at IS NULL AND created_at < ?`,
		step, projectID, cutoff,
	)
	if err != nil {
		return 0, err
	}
	archived, err := s.db.Exec(
		`UPDATE memory_facts SET archived_at = CURRENT_TIMESTAMP, status = ?
		 WHERE project_id = ? AND archived_at IS NULL AND confidence < ?`,
		FactStatusArchived, projectID, floor,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	a, _ := archived.RowsAffected()
	return int(n + a), nil
}

type MemoryEntity struct {
	ID              string
	ProjectID       string
	Name            string
	Kind            string
	OccurrenceCount int
	FirstSeen       time.Time
	LastSeen        time.Time
}

// UpsertEntity links a mention to an entity, creating it on first sighting
// and bumping last_seen_at otherwise. Entity identity is (project, name,
// kind) per the unique index in schema.go.
func (s *Store) UpsertEntity(projectID, name, kind string) (*MemoryEntity, error) {
	_, err := s.db.Exec(
		`INSERT INTO memory_entities(id, project_id, name, kind) VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_id, name, kind) DO UPDATE SET last_seen_at = CURRENT_TIMESTAMP`,
		ids.New().String(), projectID, name, kind,
	)
	if err != nil {
		return nil, err
	}
	var e MemoryEntity
	err = s.db.QueryRow(
		`SELECT id, project_id, name, kind, occurrence_count, first_seen_at, last_seen_at FROM memory_entities WHERE project_id = ? AND name = ? AND kind = ?`,
		projectID, name, kind,
	).Scan(&e.ID, &e.ProjectID, &e.Name, &e.Kind, &e.OccurrenceCount, &e.FirstSeen, &e.LastSeen)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LinkEntity records a mention of entityID, deduped on (entity_id, turn_id,
// fact_id) via INSERT OR IGNORE against idx_entity_links_unique.
// occurrence_count on memory_entities is incremented only when the link was
// genuinely new, per spec.md §3/§4.2 - calling this twice with the same
// arguments increments the count exactly once.
func (s *Store) LinkEntity(entityID string, turnID, factID sql.NullString, relation string) error {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO memory_entity_links(id, entity_id, turn_id, fact_id, relation) VALUES (?, ?, ?, ?, ?)`,
		ids.New().String(), entityID, turnID, factID, relation,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	_, err = s.db.Exec(`UPDATE memory_entities SET occurrence_count = occurrence_count + 1 WHERE id = ?`, entityID)
	return err
}

type Summary struct {
	ID               string
	SessionID        string
	Kind             string // "rolling" | "snapshot"
	Content          string
	CoversFromTurnID sql.NullString
	CoversToTurnID   sql.NullString
	CreatedAt        time.Time
}

func (s *Store) InsertSummary(sum *Summary) error {
	if sum.ID == "" {
		sum.ID = ids.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO summaries(id, session_id, kind, content, covers_from_turn_id, covers_to_turn_id) VALUES (?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.SessionID, sum.Kind, sum.Content, sum.CoversFromTurnID, sum.CoversToTurnID,
	)
	return err
}

func (s *Store) LatestSummary(sessionID, kind string) (*Summary, error) {
	var sum Summary
	err := s.db.QueryRow(
		`SELECT id, session_id, kind, content, covers_from_turn_id, covers_to_turn_id, created_at
		 FROM summaries WHERE session_id = ? AND kind = ? ORDER BY created_at DESC LIMIT 1`, sessionID, kind,
	).Scan(&sum.ID, &sum.SessionID, &sum.Kind, &sum.Content, &sum.CoversFromTurnID, &sum.CoversToTurnID, &sum.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// KeywordSearch queries the FTS5 index, used as the recall engine's keyword
// leg and as the sole recall path when no vector index is available.
func (s *Store) KeywordSearch(projectID, query string, limit int) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT ref_id FROM memory_fts WHERE project_id = ? AND memory_fts MATCH ? ORDER BY rank LIMIT ?`,
		projectID, query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var refID string
		if err := rows.Scan(&refID); err != nil {
			return nil, err
		}
		out = append(out, refID)
	}
	return out, rows.Err()
}
