package mission

import (
	"testing"

	"github.com/dukerupert/questwalk/internal/model"
	"github.com/dukerupert/questwalk/internal/progress"
)

func threeTasks() *model.Mission {
	return &model.Mission{
		ID: "m1",
		Tasks: []model.Task{
			{ID: "t1", Order: 1},
			{ID: "t2", Order: 2},
			{ID: "t3", Order: 3},
		},
	}
}

func TestDerivedProgress(t *testing.T) {
	tests := []struct {
		name        string
		mission     *model.Mission
		local       []string
		completed   int
		total       int
		allComplete bool
		percent     int
		recommended string
	}{
		{"nil mission", nil, nil, 0, 0, false, 0, ""},
		{"empty mission", &model.Mission{ID: "m0"}, nil, 0, 0, false, 0, ""},
		{"none done", threeTasks(), nil, 0, 3, false, 0, "t1"},
		{"one done", threeTasks(), []string{"t1"}, 1, 3, false, 33, "t2"},
		{"out of order", threeTasks(), []string{"t2"}, 1, 3, false, 33, "t1"},
		{"all done", threeTasks(), []string{"t1", "t2", "t3"}, 3, 3, true, 100, ""},
		{"foreign ids ignored", threeTasks(), []string{"x1", "t3"}, 1, 3, false, 33, "t1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := progress.NewEntry()
			for _, id := range tt.local {
				e.MarkCompleted(id)
			}
			p := DerivedProgress(tt.mission, e)

			if p.CompletedCount != tt.completed || p.TotalCount != tt.total {
				t.Errorf("count = %d/%d, want %d/%d", p.CompletedCount, p.TotalCount, tt.completed, tt.total)
			}
			if p.CompletedCount > p.TotalCount {
				t.Error("completed exceeds total")
			}
			if p.AllComplete != tt.allComplete {
				t.Errorf("allComplete = %v, want %v", p.AllComplete, tt.allComplete)
			}
			if p.Percent != tt.percent {
				t.Errorf("percent = %d, want %d", p.Percent, tt.percent)
			}
			var rec string
			if p.Recommended != nil {
				rec = p.Recommended.ID
			}
			if rec != tt.recommended {
				t.Errorf("recommended = %q, want %q", rec, tt.recommended)
			}
		})
	}
}

func TestDerivedProgressMergesServerState(t *testing.T) {
	m := threeTasks()
	m.Tasks[0].Completed = true

	e := progress.NewEntry()
	e.MarkCompleted("t2")

	p := DerivedProgress(m, e)
	if p.CompletedCount != 2 {
		t.Errorf("completed = %d, want 2", p.CompletedCount)
	}
}

func TestStateOf(t *testing.T) {
	m := threeTasks()

	tests := []struct {
		name   string
		active string
		locked bool
		done   []string
		want   State
	}{
		{"no active mission", "", false, nil, StateNotStarted},
		{"other mission active", "m9", false, nil, StateNotStarted},
		{"selected", "m1", false, nil, StateInProgress},
		{"locked", "m1", true, []string{"t1"}, StateLocked},
		{"complete", "m1", true, []string{"t1", "t2", "t3"}, StateComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := progress.NewEntry()
			e.ActiveMissionID = tt.active
			e.MissionLocked = tt.locked
			for _, id := range tt.done {
				e.MarkCompleted(id)
			}
			if got := StateOf(m, e, DerivedProgress(m, e)); got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
		})
	}
}
