package store

import "database/sql"

// GetState reads a server_state value; returns "", false when absent. Used
// by the scheduler to persist per-worker last-run timestamps across
// restarts.
func (s *Store) GetState(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM server_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetState(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO server_state(key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}
