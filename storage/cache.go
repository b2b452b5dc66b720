package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskzen-api/domain"
)

type backend interface {
	FetchObjectives(ctx context.Context, userID string) ([]domain.Objective, int, error)
	CreateObjective(ctx context.Context, userID string, obj domain.Objective) (string, error)
	UpdateSubtasks(ctx context.Context, userID, objectiveID string, subtasks []domain.SubTask) error
	UpdateStatus(ctx context.Context, userID, objectiveID string, status domain.Status) error
	DeleteObjective(ctx context.Context, userID, objectiveID string) error
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	SaveSettings(ctx context.Context, userID string, settings domain.Settings) error
}

// Cache wraps a Storage instance with Redis-backed caching for read
// operations. Caching is best effort: Redis failures fall through to the
// backing store and corrupt entries evict themselves.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FetchObjectives(ctx context.Context, userID string) ([]domain.Objective, int, error) {
	if objectives, ok := c.loadObjectives(ctx, userID); ok {
		return objectives, 0, nil
	}

	objectives, skipped, err := c.base.FetchObjectives(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	c.storeObjectives(ctx, userID, objectives)
	return objectives, skipped, nil
}

func (c *Cache) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	if settings, ok := c.loadSettings(ctx, userID); ok {
		return settings, nil
	}

	settings, err := c.base.FetchSettings(ctx, userID)
	if err != nil {
		return domain.Settings{}, err
	}

	c.storeSettings(ctx, userID, settings)
	return settings, nil
}

func (c *Cache) CreateObjective(ctx context.Context, userID string, obj domain.Objective) (string, error) {
	id, err := c.base.CreateObjective(ctx, userID, obj)
	if err != nil {
		return "", err
	}
	c.evict(ctx, userID)
	return id, nil
}

func (c *Cache) UpdateSubtasks(ctx context.Context, userID, objectiveID string, subtasks []domain.SubTask) error {
	if err := c.base.UpdateSubtasks(ctx, userID, objectiveID, subtasks); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) UpdateStatus(ctx context.Context, userID, objectiveID string, status domain.Status) error {
	if err := c.base.UpdateStatus(ctx, userID, objectiveID, status); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) DeleteObjective(ctx context.Context, userID, objectiveID string) error {
	if err := c.base.DeleteObjective(ctx, userID, objectiveID); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) SaveSettings(ctx context.Context, userID string, settings domain.Settings) error {
	if err := c.base.SaveSettings(ctx, userID, settings); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) loadObjectives(ctx context.Context, userID string) ([]domain.Objective, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, objectivesCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, objectivesCacheKey(userID)).Err()
		}
		return nil, false
	}
	var objectives []domain.Objective
	if err := json.Unmarshal(data, &objectives); err != nil {
		_ = c.redis.Del(ctx, objectivesCacheKey(userID)).Err()
		return nil, false
	}
	return objectives, true
}

func (c *Cache) loadSettings(ctx context.Context, userID string) (domain.Settings, bool) {
	if c.redis == nil {
		return domain.Settings{}, false
	}
	data, err := c.redis.Get(ctx, settingsCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, settingsCacheKey(userID)).Err()
		}
		return domain.Settings{}, false
	}
	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		_ = c.redis.Del(ctx, settingsCacheKey(userID)).Err()
		return domain.Settings{}, false
	}
	return settings, true
}

func (c *Cache) storeObjectives(ctx context.Context, userID string, objectives []domain.Objective) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(objectives)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, objectivesCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) storeSettings(ctx context.Context, userID string, settings domain.Settings) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, settingsCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, objectivesCacheKey(userID), settingsCacheKey(userID)).Result()
}

func objectivesCacheKey(userID string) string {
	return "objectives:" + userID
}

func settingsCacheKey(userID string) string {
	return "settings:" + userID
}
