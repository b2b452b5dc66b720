package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"taskzen-api/domain"
)

// Store is the slice of the persistence layer a session needs.
type Store interface {
	FetchObjectives(ctx context.Context, userID string) ([]domain.Objective, int, error)
	CreateObjective(ctx context.Context, userID string, obj domain.Objective) (string, error)
	UpdateSubtasks(ctx context.Context, userID, objectiveID string, subtasks []domain.SubTask) error
	UpdateStatus(ctx context.Context, userID, objectiveID string, status domain.Status) error
	DeleteObjective(ctx context.Context, userID, objectiveID string) error
}

// ErrNotHydrated is returned for clock-dependent reads issued before the
// session has loaded its authoritative snapshot.
var ErrNotHydrated = errors.New("session: not hydrated")

// MutationState is the outcome of one coordinated mutation.
type MutationState int

const (
	// MutationNoop means the target was not found in local state; stale UI
	// references are benign and never surfaced as errors.
	MutationNoop MutationState = iota
	// MutationCommitted means the optimistic update was durably persisted.
	MutationCommitted
	// MutationRolledBack means the store rejected the write and local state
	// was replaced with a fresh authoritative fetch.
	MutationRolledBack
)

func (s MutationState) String() string {
	switch s {
	case MutationNoop:
		return "noop"
	case MutationCommitted:
		return "committed"
	case MutationRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Session owns one user's in-memory objective list between sign-in and
// sign-out. The store remains the owner of record; all mutations go through
// the optimistic-update-with-reconciliation protocol below. Engine reads
// only ever see deep-copied snapshots.
type Session struct {
	userID string
	store  Store
	clock  func() time.Time

	mu         sync.Mutex
	objectives []domain.Objective
	hydrated   bool
}

// New creates a session for the given user. Call Hydrate before reading.
func New(store Store, userID string) *Session {
	return &Session{
		userID: userID,
		store:  store,
		clock:  time.Now,
	}
}

// Hydrate replaces local state with the full authoritative objective list.
// It returns the number of quarantined store rows.
func (s *Session) Hydrate(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) (int, error) {
	objectives, skipped, err := s.store.FetchObjectives(ctx, s.userID)
	if err != nil {
		return 0, err
	}
	s.objectives = objectives
	s.hydrated = true
	return skipped, nil
}

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// Hydrated reports whether the session holds an authoritative snapshot.
// It stays false after a failed Hydrate so callers can retry instead of
// treating the empty list as real.
func (s *Session) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Objectives returns a deep-copied snapshot of the current list.
func (s *Session) Objectives() []domain.Objective {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneObjectives(s.objectives)
}

// TodaysMissions computes the next subtask per active objective.
func (s *Session) TodaysMissions() []domain.Mission {
	return domain.TodaysMissions(s.Objectives())
}

// RecommendedMissions computes today's weekday-filtered missions. The wall
// clock is read only after hydration (see ErrNotHydrated).
func (s *Session) RecommendedMissions() ([]domain.Mission, error) {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return nil, ErrNotHydrated
	}
	snapshot := domain.CloneObjectives(s.objectives)
	s.mu.Unlock()
	return domain.RecommendedMissions(snapshot, s.clock().Weekday()), nil
}

// OverallProgress scores every objective in the snapshot.
func (s *Session) OverallProgress() []domain.Progress {
	return domain.OverallProgress(s.Objectives())
}

// ActiveTitles joins the titles of active objectives for the mentorship
// prompt. An empty result means there is nothing to ask about.
func (s *Session) ActiveTitles() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := []string{}
	for _, obj := range s.objectives {
		if obj.Status == domain.StatusActive {
			titles = append(titles, obj.Title)
		}
	}
	return strings.Join(titles, ", ")
}

// ToggleSubtask applies a completion toggle: optimistic local replacement of
// exactly the targeted subtask, then persistence of the objective's entire
// subtask sequence. On store rejection local state is replaced wholesale
// with a fresh fetch and the store error is returned alongside
// MutationRolledBack. Unknown IDs are a silent no-op.
func (s *Session) ToggleSubtask(ctx context.Context, objectiveID, subtaskID string, completed bool) (MutationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	objIdx, subIdx := -1, -1
	for i, obj := range s.objectives {
		if obj.ID != objectiveID {
			continue
		}
		for j, st := range obj.Subtasks {
			if st.ID == subtaskID {
				objIdx, subIdx = i, j
				break
			}
		}
		break
	}
	if objIdx < 0 || subIdx < 0 {
		return MutationNoop, nil
	}

	previous := s.objectives

	// Structural sharing: only the touched objective and its subtask slice
	// are reallocated, untouched objectives keep their backing arrays.
	next := make([]domain.Objective, len(previous))
	copy(next, previous)
	subtasks := make([]domain.SubTask, len(previous[objIdx].Subtasks))
	copy(subtasks, previous[objIdx].Subtasks)
	subtasks[subIdx].Completed = completed
	next[objIdx].Subtasks = subtasks
	s.objectives = next

	if err := s.store.UpdateSubtasks(ctx, s.userID, objectiveID, subtasks); err != nil {
		s.reconcileLocked(ctx, previous)
		return MutationRolledBack, err
	}
	return MutationCommitted, nil
}

// ToggleStatus flips an objective between active and paused with the same
// optimistic protocol. Objectives marked completed in the store are left
// alone; no transition targets that value.
func (s *Session) ToggleStatus(ctx context.Context, objectiveID string) (MutationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, obj := range s.objectives {
		if obj.ID == objectiveID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return MutationNoop, nil
	}

	var next domain.Status
	switch s.objectives[idx].Status {
	case domain.StatusActive:
		next = domain.StatusPaused
	case domain.StatusPaused:
		next = domain.StatusActive
	default:
		return MutationNoop, nil
	}

	previous := s.objectives
	updated := make([]domain.Objective, len(previous))
	copy(updated, previous)
	updated[idx].Status = next
	s.objectives = updated

	if err := s.store.UpdateStatus(ctx, s.userID, objectiveID, next); err != nil {
		s.reconcileLocked(ctx, previous)
		return MutationRolledBack, err
	}
	return MutationCommitted, nil
}

// AddObjective validates and authors a new objective, persists it, and
// appends it to local state with the store-assigned ID. Validation failures
// happen before any side effect.
func (s *Session) AddObjective(ctx context.Context, title, tasksText, separator string, preferredDays []int) (domain.Objective, error) {
	obj, err := domain.NewObjective(title, tasksText, separator, preferredDays, s.clock())
	if err != nil {
		return domain.Objective{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.store.CreateObjective(ctx, s.userID, obj)
	if err != nil {
		return domain.Objective{}, err
	}
	obj.ID = id
	s.objectives = append(domain.CloneObjectives(s.objectives), obj)
	return obj.Clone(), nil
}

// DeleteObjective removes an objective optimistically, restoring the prior
// list when the store rejects the delete.
func (s *Session) DeleteObjective(ctx context.Context, objectiveID string) (MutationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, obj := range s.objectives {
		if obj.ID == objectiveID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return MutationNoop, nil
	}

	previous := s.objectives
	next := make([]domain.Objective, 0, len(previous)-1)
	next = append(next, previous[:idx]...)
	next = append(next, previous[idx+1:]...)
	s.objectives = next

	if err := s.store.DeleteObjective(ctx, s.userID, objectiveID); err != nil {
		s.objectives = previous
		return MutationRolledBack, err
	}
	return MutationCommitted, nil
}

// reconcileLocked replaces local state with a fresh authoritative fetch. If
// even the re-fetch fails the pre-mutation snapshot is restored so the
// optimistic value never survives a rejected write.
func (s *Session) reconcileLocked(ctx context.Context, previous []domain.Objective) {
	if _, err := s.refreshLocked(ctx); err != nil {
		s.objectives = previous
	}
}
