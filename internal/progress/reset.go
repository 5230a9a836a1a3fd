package progress

import "time"

// DailyReset decides when a check-in starts a new cycle. Dates are compared
// at day granularity in Location.
type DailyReset struct {
	Location *time.Location
}

func (p DailyReset) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// DateOf returns the calendar date of t in the policy's location.
func (p DailyReset) DateOf(t time.Time) string {
	return t.In(p.loc()).Format(DateLayout)
}

// ShouldReset reports whether a check-in at checkIn begins a new cycle.
// Repeated check-ins on the same calendar day keep progress.
func (p DailyReset) ShouldReset(checkIn time.Time, e Entry) bool {
	if e.LastCheckInDate == "" {
		return true
	}
	return p.DateOf(checkIn) != e.LastCheckInDate
}

// Apply starts a new cycle on e: the check-in date is recorded and
// completed tasks, the active mission and its lock are cleared.
// Achievement counters and points are left untouched.
func (p DailyReset) Apply(checkIn time.Time, e *Entry) {
	e.LastCheckInDate = p.DateOf(checkIn)
	e.CompletedTaskIDs = make(map[string]struct{})
	e.MissionLocked = false
	e.ActiveMissionID = ""
	e.ensure()
}
