package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"portal/domain"
)

const (
	projectCachePrefix = "project:"
	cacheVersion       = 1
	maxWatchRetries    = 5
)

type cachedProject struct {
	Version        int            `json:"version"`
	CachedAt       time.Time      `json:"cachedAt"`
	TasksTimestamp int64          `json:"tasksTimestamp"`
	Project        domain.Project `json:"project"`
}

// Cache wraps a Backend with a Redis copy of each project. Task collections are
// written through to the cache as soon as the API produces them, so reads see
// them before the backend write lands.
type Cache struct {
	Backend
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Backend: base, redis: client, ttl: ttl, now: time.Now}
}

func (c *Cache) GetProject(ctx context.Context, id string) (domain.Project, error) {
	if entry, ok := c.load(ctx, id); ok {
		return entry.Project, nil
	}
	p, err := c.Backend.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if err := c.StoreProject(ctx, p, 0); err != nil {
		log.WithError(err).WithField("project", id).Warn("failed to cache project")
	}
	return p, nil
}

// ListProjects reads the backend and substitutes cached copies, which may carry
// task collections the backend has not applied yet.
func (c *Cache) ListProjects(ctx context.Context) ([]domain.Project, error) {
	projects, err := c.Backend.ListProjects(ctx)
	if err != nil || c.redis == nil || len(projects) == 0 {
		return projects, err
	}
	keys := make([]string, len(projects))
	for i, p := range projects {
		keys[i] = projectCacheKey(p.ID)
	}
	vals, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		log.WithError(err).Warn("failed to read cached projects")
		return projects, nil
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var entry cachedProject
		if err := json.Unmarshal([]byte(s), &entry); err != nil || entry.Version != cacheVersion {
			continue
		}
		projects[i] = entry.Project
	}
	return projects, nil
}

func (c *Cache) CreateProject(ctx context.Context, p domain.Project) error {
	if err := c.Backend.CreateProject(ctx, p); err != nil {
		return err
	}
	if err := c.StoreProject(ctx, p, 0); err != nil {
		log.WithError(err).WithField("project", p.ID).Warn("failed to cache project")
	}
	return nil
}

func (c *Cache) SaveProject(ctx context.Context, p domain.Project) error {
	if err := c.Backend.SaveProject(ctx, p); err != nil {
		return err
	}
	if err := c.StoreProject(ctx, p, 0); err != nil {
		log.WithError(err).WithField("project", p.ID).Warn("failed to cache project")
	}
	return nil
}

func (c *Cache) DeleteProject(ctx context.Context, id string) error {
	if err := c.Backend.DeleteProject(ctx, id); err != nil {
		return err
	}
	c.Evict(ctx, id)
	return nil
}

// StoreProject caches p. tasksTS is the issue timestamp of p's task collection,
// 0 when unknown. A cached collection issued later than tasksTS is kept, so a
// stale refresh never rolls back a newer write-through.
func (c *Cache) StoreProject(ctx context.Context, p domain.Project, tasksTS int64) error {
	if c.redis == nil || c.ttl == 0 {
		return nil
	}
	key := projectCacheKey(p.ID)
	txf := func(tx *redis.Tx) error {
		entry := cachedProject{Version: cacheVersion, TasksTimestamp: tasksTS, Project: p}
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var existing cachedProject
			if json.Unmarshal(data, &existing) == nil && existing.Version == cacheVersion && existing.TasksTimestamp > tasksTS {
				entry.Project.Tasks = existing.Project.Tasks
				entry.TasksTimestamp = existing.TasksTimestamp
			}
		}
		entry.CachedAt = c.now().UTC()
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < maxWatchRetries; i++ {
		err := c.redis.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

// Evict drops the cached copy of a project.
func (c *Cache) Evict(ctx context.Context, id string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, projectCacheKey(id)).Err()
}

func (c *Cache) load(ctx context.Context, id string) (cachedProject, bool) {
	if c.redis == nil {
		return cachedProject{}, false
	}
	data, err := c.redis.Get(ctx, projectCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, projectCacheKey(id)).Err()
		}
		return cachedProject{}, false
	}
	var entry cachedProject
	if err := json.Unmarshal(data, &entry); err != nil || entry.Version != cacheVersion {
		_ = c.redis.Del(ctx, projectCacheKey(id)).Err()
		return cachedProject{}, false
	}
	return entry, true
}

func projectCacheKey(id string) string {
	return projectCachePrefix + id
}
