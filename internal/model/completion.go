package model

// CompletionEvent announces that a task was just confirmed complete. It is
// delivered at most once to the mission view.
type CompletionEvent struct {
	TaskID           string `json:"taskId" validate:"required"`
	MissionID        string `json:"missionId" validate:"required"`
	RewardPoints     int    `json:"reward"`
	NewTotalPoints   int    `json:"newTotalPoints"`
	MissionCompleted bool   `json:"missionCompleted"`
	MissionLocked    bool   `json:"missionLocked"`
}

// CompletionResult is the Mission Service's answer to a task completion.
type CompletionResult struct {
	Reward           int  `json:"reward"`
	NewTotalPoints   int  `json:"newTotalPoints"`
	MissionCompleted bool `json:"missionCompleted"`
	MissionLocked    bool `json:"missionLocked"`
}

// Event builds the completion event for taskID of missionID.
func (r CompletionResult) Event(missionID, taskID string) CompletionEvent {
	return CompletionEvent{
		TaskID:           taskID,
		MissionID:        missionID,
		RewardPoints:     r.Reward,
		NewTotalPoints:   r.NewTotalPoints,
		MissionCompleted: r.MissionCompleted,
		MissionLocked:    r.MissionLocked,
	}
}

type SelectResult struct {
	Success bool `json:"success"`
	Locked  bool `json:"locked"`
}

type SwapResult struct {
	Success bool   `json:"success"`
	Locked  bool   `json:"locked"`
	Message string `json:"message,omitempty"`
}
