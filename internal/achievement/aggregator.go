package achievement

import (
	"log/slog"

	"github.com/dukerupert/questwalk/internal/model"
	"github.com/dukerupert/questwalk/internal/progress"
)

// CategoryLookup resolves a task id to the category the Mission Service
// assigned it. *model.Mission satisfies it.
type CategoryLookup interface {
	CategoryOf(taskID string) (model.Category, bool)
}

// Aggregator turns completed tasks into per-category counters.
type Aggregator struct {
	logger *slog.Logger
}

func NewAggregator(logger *slog.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// RecordCompletion increments the counter for taskID's category by one and
// reports whether it did. Unknown tasks and unrecognized categories are
// logged and skipped.
func (a *Aggregator) RecordCompletion(taskID string, lookup CategoryLookup, e *progress.Entry) bool {
	if lookup == nil {
		a.logger.Warn("no category lookup for completed task", "task_id", taskID)
		return false
	}
	category, ok := lookup.CategoryOf(taskID)
	if !ok {
		a.logger.Warn("completed task has no category", "task_id", taskID)
		return false
	}
	if !category.Valid() {
		a.logger.Warn("unrecognized task category", "task_id", taskID, "category", category)
		return false
	}
	if e.AchievementCounters == nil {
		e.AchievementCounters = make(map[model.Category]int)
	}
	e.AchievementCounters[category]++
	return true
}
