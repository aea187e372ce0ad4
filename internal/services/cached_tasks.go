package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"todo-api/internal/cache"
	"todo-api/internal/models"

	"go.uber.org/zap"
)

// TaskCache is the subset of cache.RedisCache the task cache needs.
type TaskCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// CachedTaskService serves a caller's task list from the cache. Lists are
// stored under the caller's current generation; every change by that caller
// bumps the generation, so a list computed before the change can never be
// read after it. Cache failures fall back to the wrapped service and are only
// logged.
type CachedTaskService struct {
	taskService TaskService
	cache       TaskCache
	breaker     *cache.CircuitBreaker
	ops         *cache.OperationCounter
	ttl         time.Duration
	logger      *zap.Logger
}

func NewCachedTaskService(taskService TaskService, c TaskCache, breaker *cache.CircuitBreaker, ops *cache.OperationCounter, ttl time.Duration, logger *zap.Logger) *CachedTaskService {
	if breaker == nil {
		breaker = cache.NewCircuitBreaker(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedTaskService{
		taskService: taskService,
		cache:       c,
		breaker:     breaker,
		ops:         ops,
		ttl:         ttl,
		logger:      logger,
	}
}

func generationKey(callerID string) string {
	return "todos:gen:" + callerID
}

func listCacheKey(callerID string, generation int64) string {
	return "todos:" + callerID + ":" + strconv.FormatInt(generation, 10)
}

// generationTTL outlives every list written under a generation, so an
// expired counter restarting at zero cannot expose an old list.
func (s *CachedTaskService) generationTTL() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return max(2*s.ttl, time.Hour)
}

func (s *CachedTaskService) generation(ctx context.Context, callerID string) (int64, error) {
	var gen int64
	err := s.breaker.Execute(func() error {
		err := s.cache.Get(ctx, generationKey(callerID), &gen)
		if errors.Is(err, cache.ErrCacheMiss) {
			gen = 0
			return nil
		}
		return err
	})
	return gen, err
}

func (s *CachedTaskService) List(ctx context.Context, callerID string) ([]models.Task, error) {
	gen, err := s.generation(ctx, callerID)
	if err != nil {
		s.recordFailure(cache.OpGet, generationKey(callerID), err)
		return s.taskService.List(ctx, callerID)
	}
	key := listCacheKey(callerID, gen)

	var cached []models.Task
	hit := false
	err = s.breaker.Execute(func() error {
		err := s.cache.Get(ctx, key, &cached)
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil
		}
		if err == nil {
			hit = true
		}
		return err
	})
	switch {
	case err != nil:
		s.recordFailure(cache.OpGet, key, err)
	case hit && cached != nil:
		s.ops.Record(cache.OpGet, cache.ResultHit)
		return cached, nil
	default:
		s.ops.Record(cache.OpGet, cache.ResultMiss)
	}

	tasks, err := s.taskService.List(ctx, callerID)
	if err != nil {
		return nil, err
	}

	err = s.breaker.Execute(func() error {
		return s.cache.Set(ctx, key, tasks, s.ttl)
	})
	if err != nil {
		s.recordFailure(cache.OpSet, key, err)
	} else {
		s.ops.Record(cache.OpSet, cache.ResultOK)
	}

	return tasks, nil
}

func (s *CachedTaskService) Get(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	return s.taskService.Get(ctx, callerID, taskID)
}

func (s *CachedTaskService) Create(ctx context.Context, callerID string, in TaskInput) (*models.Task, error) {
	task, err := s.taskService.Create(ctx, callerID, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, callerID)
	return task, nil
}

func (s *CachedTaskService) Update(ctx context.Context, callerID, taskID string, in TaskInput) (*models.Task, error) {
	task, err := s.taskService.Update(ctx, callerID, taskID, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, callerID)
	return task, nil
}

func (s *CachedTaskService) Delete(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	task, err := s.taskService.Delete(ctx, callerID, taskID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, callerID)
	return task, nil
}

// invalidate moves the caller to a new generation, bypassing an open
// breaker, and drops the list cached under the previous one.
func (s *CachedTaskService) invalidate(ctx context.Context, callerID string) {
	genKey := generationKey(callerID)

	var gen int64
	incr := func() error {
		var err error
		gen, err = s.cache.Incr(ctx, genKey, s.generationTTL())
		return err
	}
	err := s.breaker.Execute(incr)
	if errors.Is(err, cache.ErrCircuitBreakerOpen) {
		err = incr()
	}
	if err != nil {
		s.recordFailure(cache.OpIncr, genKey, err)
		return
	}
	s.ops.Record(cache.OpIncr, cache.ResultOK)

	stale := listCacheKey(callerID, gen-1)
	if err := s.cache.Delete(ctx, stale); err != nil {
		s.recordFailure(cache.OpDelete, stale, err)
		return
	}
	s.ops.Record(cache.OpDelete, cache.ResultOK)
}

func (s *CachedTaskService) recordFailure(op, key string, err error) {
	if errors.Is(err, cache.ErrCircuitBreakerOpen) {
		s.ops.Record(op, cache.ResultSkipped)
		return
	}
	s.ops.Record(op, cache.ResultError)
	s.logger.Warn("task cache operation failed",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
