package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// defaultVectorDimensions is used the first time vector tables are created,
// before any embedding provider has reported its actual dimensionality.
// ReindexForProvider recreates the tables at the real dimension once known.
const defaultVectorDimensions = 768

// detectVecExtension probes for sqlite-vec by attempting to create a throwaway
// virtual table, matching the teacher's detection approach.
func detectVecExtension(db *sql.DB) bool {
	if _, err := db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err != nil {
		return false
	}
	_, _ = db.Exec("DROP TABLE IF EXISTS vec_probe")
	return true
}

func (s *Store) createVectorTables() error {
	return s.createVectorTablesWithDims(defaultVectorDimensions)
}

func (s *Store) createVectorTablesWithDims(dims int) error {
	stmts := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_memory USING vec0(
			ref_id TEXT PRIMARY KEY,
			project_id TEXT PARTITION KEY,
			embedding float[%d]
		)`, dims),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_code USING vec0(
			ref_id TEXT PRIMARY KEY,
			project_id TEXT PARTITION KEY,
			embedding float[%d]
		)`, dims),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) dropVectorTables() error {
	for _, tbl := range []string{"vec_memory", "vec_code"} {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + tbl); err != nil {
			return err
		}
	}
	return nil
}

// EncodeVector packs a float32 slice into the little-endian blob format
// sqlite-vec expects.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector reverses EncodeVector.
func DecodeVector(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// UpsertMemoryVector stores or replaces a turn/fact embedding in the ANN
// index. No-ops when the sqlite-vec extension isn't loaded, letting callers
// proceed unconditionally and rely on HasVectorIndex only for query-time
// fallback decisions.
func (s *Store) UpsertMemoryVector(refID, projectID string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.vectorExt {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO vec_memory(ref_id, project_id, embedding) VALUES (?, ?, ?)
		 ON CONFLICT(ref_id) DO UPDATE SET embedding = excluded.embedding`,
		refID, projectID, EncodeVector(embedding),
	)
	return err
}

func (s *Store) UpsertCodeVector(refID, projectID string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.vectorExt {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO vec_code(ref_id, project_id, embedding) VALUES (?, ?, ?)
		 ON CONFLICT(ref_id) DO UPDATE SET embedding = excluded.embedding`,
		refID, projectID, EncodeVector(embedding),
	)
	return err
}

// VectorMatch is one row of an ANN nearest-neighbor query.
type VectorMatch struct {
	RefID    string
	Distance float64
}

// SearchMemoryVectors runs a k-nearest-neighbor query scoped to a project.
// Returns an empty slice (not an error) when the vector extension isn't
// loaded, so callers can always fall through to keyword-only recall.
func (s *Store) SearchMemoryVectors(projectID string, query []float32, k int) ([]VectorMatch, error) {
	return s.searchVectors("vec_memory", projectID, query, k)
}

func (s *Store) SearchCodeVectors(projectID string, query []float32, k int) ([]VectorMatch, error) {
	return s.searchVectors("vec_code", projectID, query, k)
}

// crossProjectFactTypes are the fact_type values spec.md §4.2's
// cross-project predicate admits.
var crossProjectFactTypes = []string{
	FactTypeGeneral, FactTypePreference, FactTypeDecision, FactTypePattern, FactTypeContext,
}

// FactMatch is one cross-project vector hit already joined against its
// fact's filterable metadata.
type FactMatch struct {
	RefID     string
	ProjectID string
	Distance  float64
	FactType  string
	Statement string
}

// SearchCrossProjectFacts runs a k-nearest-neighbor query against a single
// other project's vectors, joined against memory_facts and restricted to
// spec.md §4.2's cross-project predicate: scope='project', status='active',
// not suspicious, and an admitted fact_type. Turn ref_ids never join to
// memory_facts and are dropped by the inner join, since cross-project
// recall surfaces facts only. Returns an empty slice when the vector
// extension isn't loaded.
func (s *Store) SearchCrossProjectFacts(projectID string, query []float32, k int) ([]FactMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.vectorExt {
		return nil, nil
	}

	placeholders := make([]string, len(crossProjectFactTypes))
	args := make([]any, 0, len(crossProjectFactTypes)+3)
	args = append(args, projectID, EncodeVector(query), k)
	for i, ft := range crossProjectFactTypes {
		placeholders[i] = "?"
		args = append(args, ft)
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT v.ref_id, v.project_id, v.distance, f.fact_type, f.statement
		 FROM vec_memory v
		 JOIN memory_facts f ON f.id = v.ref_id
		 WHERE v.project_id = ? AND v.embedding MATCH ? AND v.k = ?
		   AND f.scope = 'project' AND f.status = 'active' AND f.suspicious = 0
		   AND f.fact_type IN (%s)
		 ORDER BY v.distance`, strings.Join(placeholders, ",")),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FactMatch
	for rows.Next() {
		var m FactMatch
		if err := rows.Scan(&m.RefID, &m.ProjectID, &m.Distance, &m.FactType, &m.Statement); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) searchVectors(table, projectID string, query []float32, k int) ([]VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.vectorExt {
		return nil, nil
	}
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT ref_id, distance FROM %s
		 WHERE project_id = ? AND embedding MATCH ? AND k = ?
		 ORDER BY distance`, table),
		projectID, EncodeVector(query), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.RefID, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
