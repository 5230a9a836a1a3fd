package model

import "time"

// Category classifies a task for achievement aggregation.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryPhoto         Category = "photo"
	CategoryEntertainment Category = "entertainment"
	CategoryShopping      Category = "shopping"
	CategorySports        Category = "sports"
)

// Categories lists every recognized category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryPhoto,
	CategoryEntertainment,
	CategoryShopping,
	CategorySports,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryPhoto, CategoryEntertainment, CategoryShopping, CategorySports:
		return true
	}
	return false
}

type Task struct {
	ID           string   `json:"id" validate:"required"`
	Order        int      `json:"order" validate:"gte=1"`
	Category     Category `json:"type"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	LocationID   string   `json:"locationId"`
	LocationName string   `json:"locationName,omitempty"`
	Distance     string   `json:"distance,omitempty"`
	WalkTime     string   `json:"walkTime,omitempty"`
	Reward       int      `json:"reward" validate:"gte=0"`
	Completed    bool     `json:"completed"`
}

type Mission struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	Tasks       []Task    `json:"tasks" validate:"dive"`
	TotalReward int       `json:"totalReward" validate:"gte=0"`
	BonusReward int       `json:"bonusReward" validate:"gte=0"`
	ExpiresAt   time.Time `json:"expiryTime"`
	Locked      bool      `json:"locked"`
	Duration    string    `json:"duration,omitempty"`
}

// Task returns the task with the given id, or nil if the mission has none.
func (m *Mission) Task(id string) *Task {
	for i := range m.Tasks {
		if m.Tasks[i].ID == id {
			return &m.Tasks[i]
		}
	}
	return nil
}

// HasTask reports whether id belongs to this mission.
func (m *Mission) HasTask(id string) bool {
	return m.Task(id) != nil
}

// CategoryOf resolves a task id to its category. It satisfies the lookup
// contract used by the achievement aggregator.
func (m *Mission) CategoryOf(taskID string) (Category, bool) {
	t := m.Task(taskID)
	if t == nil {
		return "", false
	}
	return t.Category, true
}

// Remaining returns the time left before the mission expires. A mission
// without an expiry never runs out; ok is false in that case.
func (m *Mission) Remaining(now time.Time) (d time.Duration, ok bool) {
	if m.ExpiresAt.IsZero() {
		return 0, false
	}
	d = m.ExpiresAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

type Location struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	// SpecialCodeHash is a bcrypt hash of the on-site code. Empty means the
	// location does not require a code.
	SpecialCodeHash string `json:"specialCodeHash,omitempty"`
}
