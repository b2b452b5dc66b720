package domain

// DefaultWeeklyCreditGoal is used until the user stores a preference.
const DefaultWeeklyCreditGoal = 7

// Settings represents user configurable options.
type Settings struct {
	WeeklyCreditGoal int `json:"weeklyCreditGoal"`
}
