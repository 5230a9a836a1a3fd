package model

// AchievementProgress is one badge as reported by the Mission Service.
type AchievementProgress struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image,omitempty"`
	List        []string `json:"list"`
	FullList    []string `json:"fullList"`
}

// Badge is a locally computed achievement badge.
type Badge struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Categories  []Category `json:"categories"`
	Goal        int        `json:"goal"`
	Count       int        `json:"count"`
	Earned      bool       `json:"earned"`
}
