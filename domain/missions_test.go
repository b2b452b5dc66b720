package domain

import (
	"testing"
	"time"
)

func objective(id string, status Status, days []int, completed ...bool) Objective {
	subtasks := make([]SubTask, len(completed))
	for i, done := range completed {
		subtasks[i] = SubTask{ID: id + "-" + string(rune('a'+i)), Title: "step", Completed: done}
	}
	return Objective{ID: id, Title: "objective " + id, Status: status, Subtasks: subtasks, PreferredDays: days}
}

func TestTodaysMissionsPicksFirstIncompletePerActiveObjective(t *testing.T) {
	objectives := []Objective{
		objective("o1", StatusActive, nil, true, false, false),
		objective("o2", StatusPaused, nil, false),
		objective("o3", StatusActive, nil, true, true),
		objective("o4", StatusActive, nil),
		objective("o5", StatusActive, nil, false),
	}

	missions := TodaysMissions(objectives)

	if len(missions) != 2 {
		t.Fatalf("expected 2 missions, got %d", len(missions))
	}
	if missions[0].Objective.ID != "o1" || missions[0].Subtask.ID != "o1-b" {
		t.Fatalf("unexpected first mission: %s/%s", missions[0].Objective.ID, missions[0].Subtask.ID)
	}
	if missions[1].Objective.ID != "o5" {
		t.Fatalf("unexpected second mission: %s", missions[1].Objective.ID)
	}
}

func TestTodaysMissionsSelectsLowestIndexEvenAfterOutOfOrderCompletion(t *testing.T) {
	// Third subtask completed before the first two.
	obj := objective("o1", StatusActive, nil, false, true, true, false)

	missions := TodaysMissions([]Objective{obj})

	if len(missions) != 1 {
		t.Fatalf("expected 1 mission, got %d", len(missions))
	}
	if missions[0].Subtask.ID != "o1-a" {
		t.Fatalf("expected lowest-index incomplete subtask, got %s", missions[0].Subtask.ID)
	}
}

func TestRecommendedMissionsFiltersOnPreferredDay(t *testing.T) {
	obj := objective("o1", StatusActive, []int{1, 3, 5}, true, false, false)

	onDay := RecommendedMissions([]Objective{obj}, time.Wednesday)
	if len(onDay) != 1 {
		t.Fatalf("expected a recommendation on weekday 3, got %d", len(onDay))
	}
	if onDay[0].Subtask.ID != "o1-b" {
		t.Fatalf("expected second subtask, got %s", onDay[0].Subtask.ID)
	}

	offDay := RecommendedMissions([]Objective{obj}, time.Tuesday)
	if len(offDay) != 0 {
		t.Fatalf("expected no recommendation on weekday 2, got %d", len(offDay))
	}
}

func TestRecommendedMissionsIgnoresPausedAndFinishedObjectives(t *testing.T) {
	objectives := []Objective{
		objective("o1", StatusPaused, []int{0, 1, 2, 3, 4, 5, 6}, false),
		objective("o2", StatusActive, []int{2}, true, true),
	}

	missions := RecommendedMissions(objectives, time.Tuesday)
	if len(missions) != 0 {
		t.Fatalf("expected no missions, got %d", len(missions))
	}
}

func TestOverallProgress(t *testing.T) {
	tests := []struct {
		name      string
		completed []bool
		want      int
	}{
		{name: "no subtasks", completed: nil, want: 0},
		{name: "none done", completed: []bool{false, false}, want: 0},
		{name: "all done", completed: []bool{true, true, true}, want: 100},
		{name: "one of three", completed: []bool{true, false, false}, want: 33},
		{name: "two of three", completed: []bool{true, true, false}, want: 67},
		{name: "half rounds up", completed: []bool{true, false}, want: 50},
		{name: "one of six", completed: []bool{true, false, false, false, false, false}, want: 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := objective("o1", StatusActive, nil, tt.completed...)
			got := OverallProgress([]Objective{obj})
			if len(got) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(got))
			}
			if got[0].Percent != tt.want {
				t.Fatalf("progress = %d, want %d", got[0].Percent, tt.want)
			}
			if got[0].Title != obj.Title {
				t.Fatalf("unexpected title %q", got[0].Title)
			}
		})
	}
}

func TestOverallProgressScoresPausedObjectives(t *testing.T) {
	objectives := []Objective{
		objective("o1", StatusPaused, nil, true, false),
		objective("o2", StatusCompleted, nil, true),
	}

	got := OverallProgress(objectives)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Percent != 50 || got[1].Percent != 100 {
		t.Fatalf("unexpected percents: %d, %d", got[0].Percent, got[1].Percent)
	}
}

func TestToggleThenTodaysMissionsAdvances(t *testing.T) {
	obj := objective("o1", StatusActive, nil, false, false)

	obj.Subtasks[0].Completed = true
	missions := TodaysMissions([]Objective{obj})
	if len(missions) != 1 || missions[0].Subtask.ID != "o1-b" {
		t.Fatalf("expected mission to advance to second subtask, got %+v", missions)
	}

	obj.Subtasks[1].Completed = true
	missions = TodaysMissions([]Objective{obj})
	if len(missions) != 0 {
		t.Fatalf("expected objective to leave the mission list, got %d missions", len(missions))
	}
}
