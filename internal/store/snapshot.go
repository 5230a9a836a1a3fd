package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/questwalk/internal/model"
)

// SnapshotStore keeps the last authoritative body of each mission so the
// mission view can render while the Mission Service is unreachable.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Save(m *model.Mission) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mission: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO mission_snapshots (mission_id, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(mission_id) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		m.ID, string(body), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", m.ID, err)
	}
	return nil
}

// Get returns the stored mission, or nil if none was saved.
func (s *SnapshotStore) Get(missionID string) (*model.Mission, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM mission_snapshots WHERE mission_id = ?`, missionID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %q: %w", missionID, err)
	}

	var m model.Mission
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", missionID, err)
	}
	return &m, nil
}

func (s *SnapshotStore) Delete(missionID string) error {
	_, err := s.db.Exec(`DELETE FROM mission_snapshots WHERE mission_id = ?`, missionID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
