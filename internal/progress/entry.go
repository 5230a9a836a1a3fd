package progress

import (
	"maps"
	"slices"

	"github.com/dukerupert/questwalk/internal/model"
)

// Entry is the locally cached mirror of the user's mission progress for the
// current check-in cycle.
type Entry struct {
	// LastCheckInDate is the device-local calendar date (YYYY-MM-DD) of the
	// last check-in that reset progress. Empty means no check-in recorded.
	LastCheckInDate     string
	CompletedTaskIDs    map[string]struct{}
	ActiveMissionID     string
	MissionLocked       bool
	AchievementCounters map[model.Category]int
	TotalPoints         int
}

// NewEntry returns an empty entry with its maps allocated.
func NewEntry() Entry {
	return Entry{
		CompletedTaskIDs:    make(map[string]struct{}),
		AchievementCounters: make(map[model.Category]int),
	}
}

func (e *Entry) ensure() {
	if e.CompletedTaskIDs == nil {
		e.CompletedTaskIDs = make(map[string]struct{})
	}
	if e.AchievementCounters == nil {
		e.AchievementCounters = make(map[model.Category]int)
	}
}

// HasCompleted reports whether taskID is recorded as complete.
func (e Entry) HasCompleted(taskID string) bool {
	_, ok := e.CompletedTaskIDs[taskID]
	return ok
}

// MarkCompleted records taskID and reports whether it was newly added.
func (e *Entry) MarkCompleted(taskID string) bool {
	e.ensure()
	if _, ok := e.CompletedTaskIDs[taskID]; ok {
		return false
	}
	e.CompletedTaskIDs[taskID] = struct{}{}
	return true
}

// CompletedIDs returns the completed task ids in sorted order.
func (e *Entry) CompletedIDs() []string {
	return slices.Sorted(maps.Keys(e.CompletedTaskIDs))
}

// Clone returns a deep copy so callers can mutate without touching e.
func (e Entry) Clone() Entry {
	c := e
	c.CompletedTaskIDs = maps.Clone(e.CompletedTaskIDs)
	c.AchievementCounters = maps.Clone(e.AchievementCounters)
	c.ensure()
	return c
}
