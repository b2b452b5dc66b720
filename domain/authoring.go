package domain

import (
	"strconv"
	"strings"
	"time"
)

// DefaultSeparator splits subtasks within a single line of authoring text.
const DefaultSeparator = "*"

// ValidationError reports invalid authoring input. It is produced before any
// side effect and never reaches the store.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ParseSubtasks converts free-form text into ordered subtasks: lines are
// split on \n or \r\n, each line is further split on the separator,
// fragments are trimmed and empties dropped. IDs derive from the creation
// timestamp plus the fragment index and are never reused.
func ParseSubtasks(text, separator string, now time.Time) []SubTask {
	if separator == "" {
		separator = DefaultSeparator
	}
	stamp := strconv.FormatInt(now.UnixMilli(), 10)
	subtasks := []SubTask{}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		for _, fragment := range strings.Split(line, separator) {
			title := strings.TrimSpace(fragment)
			if title == "" {
				continue
			}
			subtasks = append(subtasks, SubTask{
				ID:    stamp + "-" + strconv.Itoa(len(subtasks)),
				Title: title,
			})
		}
	}
	return subtasks
}

// NewObjective authors an objective from a title, free-form subtask text and
// preferred weekdays. The title is validated before any parsing; an
// objective must end up with at least one subtask. Preferred days are
// normalized set-like: duplicates and out-of-range values are dropped.
func NewObjective(title, tasksText, separator string, preferredDays []int, now time.Time) (Objective, error) {
	if strings.TrimSpace(title) == "" {
		return Objective{}, &ValidationError{Msg: "objective title must not be empty"}
	}
	subtasks := ParseSubtasks(tasksText, separator, now)
	if len(subtasks) == 0 {
		return Objective{}, &ValidationError{Msg: "at least one subtask required"}
	}
	return Objective{
		Title:         title,
		Status:        StatusActive,
		Subtasks:      subtasks,
		PreferredDays: normalizeDays(preferredDays),
	}, nil
}

func normalizeDays(days []int) []int {
	var seen [7]bool
	out := []int{}
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
