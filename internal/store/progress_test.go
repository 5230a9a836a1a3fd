package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/questwalk/internal/database"
	"github.com/dukerupert/questwalk/internal/progress"
)

func setupProgressTestDB(t *testing.T) *ProgressStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewProgressStore(db)
}

func mustGet(t *testing.T, ps *ProgressStore, key string) string {
	t.Helper()
	v, ok, err := ps.Get(key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	if !ok {
		t.Fatalf("get %s: missing", key)
	}
	return v
}

func TestProgressGetMissing(t *testing.T) {
	ps := setupProgressTestDB(t)

	_, ok, err := ps.Get("activeMissionId")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected missing key")
	}
}

func TestProgressSetAndUpdate(t *testing.T) {
	ps := setupProgressTestDB(t)

	if err := ps.Set(map[string]string{"activeMissionId": "m1", "missionLocked": "0"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ps.Set(map[string]string{"missionLocked": "1"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := mustGet(t, ps, "activeMissionId"); got != "m1" {
		t.Errorf("activeMissionId = %q, want m1", got)
	}
	if got := mustGet(t, ps, "missionLocked"); got != "1" {
		t.Errorf("missionLocked = %q, want 1", got)
	}
}

func TestProgressClear(t *testing.T) {
	ps := setupProgressTestDB(t)

	ps.Set(map[string]string{"a": "1", "b": "2", "c": "3"})
	if err := ps.Clear("a", "c"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	for _, key := range []string{"a", "c"} {
		if _, ok, _ := ps.Get(key); ok {
			t.Errorf("%s still present after clear", key)
		}
	}
	if got := mustGet(t, ps, "b"); got != "2" {
		t.Errorf("b = %q, want 2", got)
	}
	if err := ps.Clear(); err != nil {
		t.Errorf("clear with no keys: %v", err)
	}
}

func TestProgressStoreBacksEntryCodec(t *testing.T) {
	ps := setupProgressTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := progress.NewEntry()
	e.ActiveMissionID = "m1"
	e.MarkCompleted("t1")
	e.MissionLocked = true
	if err := progress.Save(ps, e); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := progress.Load(ps, logger)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.HasCompleted("t1") || !got.MissionLocked || got.ActiveMissionID != "m1" {
		t.Errorf("unexpected entry %+v", got)
	}
}
