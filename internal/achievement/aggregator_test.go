package achievement

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/questwalk/internal/model"
	"github.com/dukerupert/questwalk/internal/progress"
)

func testAggregator() *Aggregator {
	return NewAggregator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleMission() *model.Mission {
	return &model.Mission{
		ID: "m1",
		Tasks: []model.Task{
			{ID: "t1", Order: 1, Category: model.CategoryEntertainment},
			{ID: "t2", Order: 2, Category: model.CategoryFood},
			{ID: "t3", Order: 3, Category: model.Category("karaoke")},
		},
	}
}

func TestRecordCompletionIncrementsCategory(t *testing.T) {
	a := testAggregator()
	e := progress.NewEntry()
	m := sampleMission()

	if !a.RecordCompletion("t1", m, &e) {
		t.Fatal("expected t1 to be recorded")
	}
	a.RecordCompletion("t2", m, &e)

	if got := e.AchievementCounters[model.CategoryEntertainment]; got != 1 {
		t.Errorf("entertainment = %d, want 1", got)
	}
	if got := e.AchievementCounters[model.CategoryFood]; got != 1 {
		t.Errorf("food = %d, want 1", got)
	}
}

func TestRecordCompletionSkipsUnknown(t *testing.T) {
	a := testAggregator()
	e := progress.NewEntry()
	m := sampleMission()

	tests := []struct {
		name   string
		taskID string
		lookup CategoryLookup
	}{
		{"unrecognized category", "t3", m},
		{"task not in mission", "t9", m},
		{"nil lookup", "t1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if a.RecordCompletion(tt.taskID, tt.lookup, &e) {
				t.Error("expected increment to be skipped")
			}
		})
	}
	if len(e.AchievementCounters) != 0 {
		t.Errorf("counters = %v, want empty", e.AchievementCounters)
	}
}

func TestRecordCompletionAllocatesCounters(t *testing.T) {
	a := testAggregator()
	var e progress.Entry

	a.RecordCompletion("t2", sampleMission(), &e)
	if e.AchievementCounters[model.CategoryFood] != 1 {
		t.Errorf("food = %d, want 1", e.AchievementCounters[model.CategoryFood])
	}
}
