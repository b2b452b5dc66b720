package domain

// Status controls whether an objective is eligible for mission surfacing.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	// StatusCompleted exists in stored records but no transition assigns it;
	// it is accepted on read so old documents round-trip.
	StatusCompleted Status = "completed"
)

// ValidStatus reports whether s is one of the known status values.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// SubTask is an atomic unit of work within an objective.
type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Objective is a user-defined goal with an ordered list of subtasks.
// Subtask order is authoring order and determines the "next" task.
type Objective struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Status        Status    `json:"status"`
	Subtasks      []SubTask `json:"subtasks"`
	PreferredDays []int     `json:"preferredDays"`
}

// NextSubtask returns the first incomplete subtask in stored order.
// The second result is false when every subtask is complete or none exist.
func (o Objective) NextSubtask() (SubTask, bool) {
	for _, st := range o.Subtasks {
		if !st.Completed {
			return st, true
		}
	}
	return SubTask{}, false
}

// PrefersDay reports whether the weekday (0=Sunday..6=Saturday) is one of
// the objective's recommendation days.
func (o Objective) PrefersDay(weekday int) bool {
	for _, d := range o.PreferredDays {
		if d == weekday {
			return true
		}
	}
	return false
}

// ProgressPercent is round(100*completed/total) with half rounding up,
// and 0 for an objective with no subtasks.
func (o Objective) ProgressPercent() int {
	total := len(o.Subtasks)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, st := range o.Subtasks {
		if st.Completed {
			completed++
		}
	}
	return (completed*100 + total/2) / total
}

// Clone returns a deep copy so snapshots handed to callers never alias
// session-owned slices.
func (o Objective) Clone() Objective {
	out := o
	if o.Subtasks != nil {
		out.Subtasks = make([]SubTask, len(o.Subtasks))
		copy(out.Subtasks, o.Subtasks)
	}
	if o.PreferredDays != nil {
		out.PreferredDays = make([]int, len(o.PreferredDays))
		copy(out.PreferredDays, o.PreferredDays)
	}
	return out
}

// CloneObjectives deep-copies a full objective list.
func CloneObjectives(objectives []Objective) []Objective {
	if objectives == nil {
		return nil
	}
	out := make([]Objective, len(objectives))
	for i, o := range objectives {
		out[i] = o.Clone()
	}
	return out
}
