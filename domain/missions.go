package domain

import "time"

// Mission is the next incomplete subtask surfaced for an objective.
type Mission struct {
	Objective Objective `json:"objective"`
	Subtask   SubTask   `json:"subtask"`
}

// Progress is an objective's title with its completion percentage.
type Progress struct {
	Title   string `json:"title"`
	Percent int    `json:"percent"`
}

// TodaysMissions returns one mission per active objective that still has
// incomplete work, preserving input order. Paused objectives and objectives
// whose subtasks are all complete (or absent) contribute nothing.
func TodaysMissions(objectives []Objective) []Mission {
	missions := []Mission{}
	for _, obj := range objectives {
		if obj.Status != StatusActive {
			continue
		}
		if next, ok := obj.NextSubtask(); ok {
			missions = append(missions, Mission{Objective: obj, Subtask: next})
		}
	}
	return missions
}

// RecommendedMissions is TodaysMissions further filtered to objectives whose
// preferred days include the given weekday.
func RecommendedMissions(objectives []Objective, weekday time.Weekday) []Mission {
	missions := []Mission{}
	for _, obj := range objectives {
		if obj.Status != StatusActive || !obj.PrefersDay(int(weekday)) {
			continue
		}
		if next, ok := obj.NextSubtask(); ok {
			missions = append(missions, Mission{Objective: obj, Subtask: next})
		}
	}
	return missions
}

// OverallProgress scores every objective regardless of status, preserving
// input order.
func OverallProgress(objectives []Objective) []Progress {
	progress := make([]Progress, 0, len(objectives))
	for _, obj := range objectives {
		progress = append(progress, Progress{Title: obj.Title, Percent: obj.ProgressPercent()})
	}
	return progress
}
