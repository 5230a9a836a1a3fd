package store

import (
	"testing"
	"time"

	"github.com/dukerupert/questwalk/internal/database"
	"github.com/dukerupert/questwalk/internal/model"
)

func setupSnapshotTestDB(t *testing.T) *SnapshotStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSnapshotStore(db)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ss := setupSnapshotTestDB(t)

	m := &model.Mission{
		ID:          "m1",
		Title:       "Pre-Game Power Hour",
		TotalReward: 800,
		ExpiresAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tasks: []model.Task{
			{ID: "t1", Order: 1, Category: model.CategoryFood, Reward: 300},
		},
	}
	if err := ss.Save(m); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := ss.Get("m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if got.Title != m.Title || len(got.Tasks) != 1 || got.Tasks[0].Category != model.CategoryFood {
		t.Errorf("unexpected snapshot %+v", got)
	}
	if !got.ExpiresAt.Equal(m.ExpiresAt) {
		t.Errorf("expiry = %v, want %v", got.ExpiresAt, m.ExpiresAt)
	}

	m.Title = "Renamed"
	if err := ss.Save(m); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = ss.Get("m1")
	if got.Title != "Renamed" {
		t.Errorf("title = %q, want Renamed", got.Title)
	}
}

func TestSnapshotNotFound(t *testing.T) {
	ss := setupSnapshotTestDB(t)

	got, err := ss.Get("missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing snapshot")
	}
}

func TestSnapshotDelete(t *testing.T) {
	ss := setupSnapshotTestDB(t)
	ss.Save(&model.Mission{ID: "m1"})

	if err := ss.Delete("m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := ss.Get("m1")
	if got != nil {
		t.Error("expected nil after delete")
	}
}
