package achievement

import (
	"slices"

	"github.com/dukerupert/questwalk/internal/model"
)

type badgeDef struct {
	name        string
	description string
	categories  []model.Category
	goal        int
}

// catalog mirrors the venue's published badges. Sports spots count toward
// Collector because they are the stadium's merchandise stores.
var catalog = []badgeDef{
	{
		name:        "Foodie",
		description: "A journey to find the perfect food spot",
		categories:  []model.Category{model.CategoryFood},
		goal:        4,
	},
	{
		name:        "Collector",
		description: "It is OK to want everything they sell",
		categories:  []model.Category{model.CategoryShopping, model.CategorySports},
		goal:        5,
	},
	{
		name:        "Adventurer",
		description: "What else can you try here?",
		categories:  []model.Category{model.CategoryEntertainment, model.CategoryPhoto},
		goal:        6,
	},
}

// Badges computes badge progress from category counters. Count is capped at
// the badge goal.
func Badges(counters map[model.Category]int) []model.Badge {
	badges := make([]model.Badge, 0, len(catalog))
	for _, def := range catalog {
		count := 0
		for _, c := range def.categories {
			count += counters[c]
		}
		count = min(count, def.goal)
		badges = append(badges, model.Badge{
			Name:        def.name,
			Description: def.description,
			Categories:  slices.Clone(def.categories),
			Goal:        def.goal,
			Count:       count,
			Earned:      count >= def.goal,
		})
	}
	return badges
}
