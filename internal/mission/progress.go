package mission

import (
	"math"

	"github.com/dukerupert/questwalk/internal/model"
	"github.com/dukerupert/questwalk/internal/progress"
)

// State is the mission's position in the check-in cycle.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateLocked     State = "locked"
	StateComplete   State = "complete"
)

// Progress is derived from a mission and the local cache; it is never
// stored.
type Progress struct {
	CompletedCount int         `json:"completedCount"`
	TotalCount     int         `json:"totalCount"`
	AllComplete    bool        `json:"allComplete"`
	Ratio          float64     `json:"ratio"`
	Percent        int         `json:"percent"`
	Recommended    *model.Task `json:"recommended,omitempty"`
}

// TaskDone reports whether task counts as complete: either the service
// says so or the local cache recorded it.
func TaskDone(t model.Task, e progress.Entry) bool {
	return t.Completed || e.HasCompleted(t.ID)
}

// DerivedProgress counts m's completed tasks. Recommended is the lowest
// ordered task still open.
func DerivedProgress(m *model.Mission, e progress.Entry) Progress {
	var p Progress
	if m == nil {
		return p
	}
	p.TotalCount = len(m.Tasks)
	for i := range m.Tasks {
		t := m.Tasks[i]
		if TaskDone(t, e) {
			p.CompletedCount++
			continue
		}
		if p.Recommended == nil || t.Order < p.Recommended.Order {
			rec := t
			p.Recommended = &rec
		}
	}
	p.AllComplete = p.TotalCount > 0 && p.CompletedCount == p.TotalCount
	if p.TotalCount > 0 {
		p.Ratio = float64(p.CompletedCount) / float64(p.TotalCount)
		p.Percent = int(math.Round(p.Ratio * 100))
	}
	return p
}

// StateOf places the active mission in the cycle's state machine.
func StateOf(m *model.Mission, e progress.Entry, p Progress) State {
	switch {
	case m == nil || e.ActiveMissionID == "" || m.ID != e.ActiveMissionID:
		return StateNotStarted
	case p.AllComplete:
		return StateComplete
	case e.MissionLocked:
		return StateLocked
	default:
		return StateInProgress
	}
}
