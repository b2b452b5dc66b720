package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskzen-api/domain"
)

type stubBackend struct {
	fetchObjectivesFn func(ctx context.Context, userID string) ([]domain.Objective, int, error)
	createFn          func(ctx context.Context, userID string, obj domain.Objective) (string, error)
	updateSubtasksFn  func(ctx context.Context, userID, objectiveID string, subtasks []domain.SubTask) error
	updateStatusFn    func(ctx context.Context, userID, objectiveID string, status domain.Status) error
	deleteFn          func(ctx context.Context, userID, objectiveID string) error
	fetchSettingsFn   func(ctx context.Context, userID string) (domain.Settings, error)
	saveSettingsFn    func(ctx context.Context, userID string, settings domain.Settings) error
}

func (s *stubBackend) FetchObjectives(ctx context.Context, userID string) ([]domain.Objective, int, error) {
	if s.fetchObjectivesFn == nil {
		return nil, 0, errors.New("unexpected FetchObjectives call")
	}
	return s.fetchObjectivesFn(ctx, userID)
}

func (s *stubBackend) CreateObjective(ctx context.Context, userID string, obj domain.Objective) (string, error) {
	if s.createFn == nil {
		return "", errors.New("unexpected CreateObjective call")
	}
	return s.createFn(ctx, userID, obj)
}

func (s *stubBackend) UpdateSubtasks(ctx context.Context, userID, objectiveID string, subtasks []domain.SubTask) error {
	if s.updateSubtasksFn == nil {
		return errors.New("unexpected UpdateSubtasks call")
	}
	return s.updateSubtasksFn(ctx, userID, objectiveID, subtasks)
}

func (s *stubBackend) UpdateStatus(ctx context.Context, userID, objectiveID string, status domain.Status) error {
	if s.updateStatusFn == nil {
		return errors.New("unexpected UpdateStatus call")
	}
	return s.updateStatusFn(ctx, userID, objectiveID, status)
}

func (s *stubBackend) DeleteObjective(ctx context.Context, userID, objectiveID string) error {
	if s.deleteFn == nil {
		return errors.New("unexpected DeleteObjective call")
	}
	return s.deleteFn(ctx, userID, objectiveID)
}

func (s *stubBackend) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	if s.fetchSettingsFn == nil {
		return domain.Settings{}, errors.New("unexpected FetchSettings call")
	}
	return s.fetchSettingsFn(ctx, userID)
}

func (s *stubBackend) SaveSettings(ctx context.Context, userID string, settings domain.Settings) error {
	if s.saveSettingsFn == nil {
		return errors.New("unexpected SaveSettings call")
	}
	return s.saveSettingsFn(ctx, userID, settings)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheFetchObjectivesMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	expected := []domain.Objective{{
		ID:       "obj-1",
		Title:    "Learn Go",
		Status:   domain.StatusActive,
		Subtasks: []domain.SubTask{{ID: "1-0", Title: "read the docs"}},
	}}

	var calls int
	cache := NewCache(&stubBackend{
		fetchObjectivesFn: func(ctx context.Context, uid string) ([]domain.Objective, int, error) {
			calls++
			if uid != userID {
				t.Fatalf("unexpected user id: %s", uid)
			}
			return domain.CloneObjectives(expected), 0, nil
		},
	}, client, time.Minute)

	objectives, _, err := cache.FetchObjectives(ctx, userID)
	if err != nil {
		t.Fatalf("fetch objectives: %v", err)
	}
	if !reflect.DeepEqual(objectives, expected) {
		t.Fatalf("unexpected objectives: %#v", objectives)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(objectivesCacheKey(userID)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	objectives, _, err = cache.FetchObjectives(ctx, userID)
	if err != nil {
		t.Fatalf("fetch objectives (cached): %v", err)
	}
	if !reflect.DeepEqual(objectives, expected) {
		t.Fatalf("unexpected cached objectives: %#v", objectives)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit, backend called %d times", calls)
	}
}

func TestCacheWriteEvictsBothKeys(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	mr.Set(objectivesCacheKey(userID), `[]`)
	mr.Set(settingsCacheKey(userID), `{"weeklyCreditGoal":7}`)

	cache := NewCache(&stubBackend{
		updateSubtasksFn: func(ctx context.Context, uid, objectiveID string, subtasks []domain.SubTask) error {
			return nil
		},
	}, client, time.Minute)

	if err := cache.UpdateSubtasks(ctx, userID, "obj-1", nil); err != nil {
		t.Fatalf("update subtasks: %v", err)
	}
	if mr.Exists(objectivesCacheKey(userID)) {
		t.Fatal("objectives cache entry should be evicted")
	}
	if mr.Exists(settingsCacheKey(userID)) {
		t.Fatal("settings cache entry should be evicted")
	}
}

func TestCacheWriteFailureKeepsCache(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	mr.Set(objectivesCacheKey(userID), `[]`)

	storeFailure := storeErr("update subtasks", errors.New("throttled"))
	cache := NewCache(&stubBackend{
		updateSubtasksFn: func(ctx context.Context, uid, objectiveID string, subtasks []domain.SubTask) error {
			return storeFailure
		},
	}, client, time.Minute)

	if err := cache.UpdateSubtasks(ctx, userID, "obj-1", nil); !errors.Is(err, storeFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}
	if !mr.Exists(objectivesCacheKey(userID)) {
		t.Fatal("cache should not be evicted when the write fails")
	}
}

func TestCacheCorruptEntryFallsThrough(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	mr.Set(objectivesCacheKey(userID), "{not json")

	var calls int
	cache := NewCache(&stubBackend{
		fetchObjectivesFn: func(ctx context.Context, uid string) ([]domain.Objective, int, error) {
			calls++
			return []domain.Objective{}, 0, nil
		},
	}, client, time.Minute)

	if _, _, err := cache.FetchObjectives(ctx, userID); err != nil {
		t.Fatalf("fetch objectives: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected fallthrough to backend, got %d calls", calls)
	}
}

func TestCacheFetchSettingsMissThenHit(t *testing.T) {
	_, client := newTestRedis(t)

	ctx := context.Background()
	var calls int
	cache := NewCache(&stubBackend{
		fetchSettingsFn: func(ctx context.Context, uid string) (domain.Settings, error) {
			calls++
			return domain.Settings{WeeklyCreditGoal: 10}, nil
		},
	}, client, time.Minute)

	for i := 0; i < 2; i++ {
		settings, err := cache.FetchSettings(ctx, "user-1")
		if err != nil {
			t.Fatalf("fetch settings: %v", err)
		}
		if settings.WeeklyCreditGoal != 10 {
			t.Fatalf("unexpected settings: %+v", settings)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}
}

func TestCacheZeroTTLSkipsStore(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	cache := NewCache(&stubBackend{
		fetchObjectivesFn: func(ctx context.Context, uid string) ([]domain.Objective, int, error) {
			return []domain.Objective{}, 0, nil
		},
	}, client, 0)

	if _, _, err := cache.FetchObjectives(ctx, "user-1"); err != nil {
		t.Fatalf("fetch objectives: %v", err)
	}
	if mr.Exists(objectivesCacheKey("user-1")) {
		t.Fatal("nothing should be cached with zero TTL")
	}
}
