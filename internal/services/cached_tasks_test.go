package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"todo-api/internal/cache"
	"todo-api/internal/models"
	"todo-api/internal/repositories"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// countingTaskService counts List calls reaching the store.
type countingTaskService struct {
	TaskService
	lists atomic.Int32
}

func (c *countingTaskService) List(ctx context.Context, callerID string) ([]models.Task, error) {
	c.lists.Add(1)
	return c.TaskService.List(ctx, callerID)
}

type cachedFixture struct {
	service *CachedTaskService
	inner   *countingTaskService
	mr      *miniredis.Miniredis
	ops     *cache.OperationCounter
	logs    *observer.ObservedLogs
}

func newCachedFixture(t *testing.T) cachedFixture {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := cache.DefaultCacheConfig()
	cfg.Addr = mr.Addr()
	cfg.MaxRetries = -1
	redisCache := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = redisCache.Close() })

	core, logs := observer.New(zap.WarnLevel)
	inner := &countingTaskService{TaskService: NewTaskService(repositories.NewMemoryTaskRepository())}
	ops := cache.NewOperationCounter(prometheus.NewRegistry())
	breaker := cache.NewCircuitBreaker(&cache.CircuitBreakerConfig{MaxFailures: 100, Timeout: time.Minute, HalfOpenMaxCalls: 1})

	return cachedFixture{
		service: NewCachedTaskService(inner, redisCache, breaker, ops, time.Minute, zap.New(core)),
		inner:   inner,
		mr:      mr,
		ops:     ops,
		logs:    logs,
	}
}

func (f cachedFixture) count(op, result string) float64 {
	return testutil.ToFloat64(f.ops.Collector().WithLabelValues(op, result))
}

func TestCachedTaskService_ListIsServedFromCache(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, "alice", TaskInput{Title: Some("a1")})
	require.NoError(t, err)

	first, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	second, err := f.service.List(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.inner.lists.Load())
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, f.mr.Exists("todos:alice:1"))
	assert.Equal(t, 1.0, f.count(cache.OpGet, cache.ResultHit))
	assert.Equal(t, 1.0, f.count(cache.OpGet, cache.ResultMiss))
}

func TestCachedTaskService_EmptyListIsCached(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		tasks, err := f.service.List(ctx, "alice")
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	}
	assert.Equal(t, int32(1), f.inner.lists.Load())
}

func TestCachedTaskService_MutationsInvalidateCallerList(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, "alice", TaskInput{Title: Some("a1")})
	require.NoError(t, err)
	_, err = f.service.List(ctx, "alice")
	require.NoError(t, err)
	_, err = f.service.List(ctx, "bob")
	require.NoError(t, err)

	_, err = f.service.Update(ctx, "alice", created.ID, TaskInput{Completed: Some(true)})
	require.NoError(t, err)
	assert.False(t, f.mr.Exists("todos:alice:1"), "the previous generation is dropped")
	gen, err := f.mr.Get("todos:gen:alice")
	require.NoError(t, err)
	assert.Equal(t, "2", gen)
	assert.True(t, f.mr.Exists("todos:bob:0"), "other callers keep their cached list")

	tasks, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Completed)

	_, err = f.service.Create(ctx, "alice", TaskInput{Title: Some("a2")})
	require.NoError(t, err)
	tasks, err = f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	_, err = f.service.Delete(ctx, "alice", created.ID)
	require.NoError(t, err)
	tasks, err = f.service.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a2", tasks[0].Title)
}

func TestCachedTaskService_FailedMutationKeepsCache(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	_, err := f.service.List(ctx, "alice")
	require.NoError(t, err)

	_, err = f.service.Create(ctx, "alice", TaskInput{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.service.Delete(ctx, "alice", "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	assert.True(t, f.mr.Exists("todos:alice:0"))
	assert.False(t, f.mr.Exists("todos:gen:alice"))
}

func TestCachedTaskService_FallsBackWhenRedisIsDown(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, "alice", TaskInput{Title: Some("a1")})
	require.NoError(t, err)

	f.mr.Close()

	tasks, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = f.service.Create(ctx, "alice", TaskInput{Title: Some("a2")})
	require.NoError(t, err)

	tasks, err = f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	assert.Greater(t, f.count(cache.OpGet, cache.ResultError), 0.0)
	assert.NotZero(t, f.logs.FilterMessage("task cache operation failed").Len())
}

func TestCachedTaskService_CorruptEntryFallsBack(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, "alice", TaskInput{Title: Some("a1")})
	require.NoError(t, err)
	require.NoError(t, f.mr.Set("todos:alice:1", "{not json"))

	tasks, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestCachedTaskService_OpenBreakerSkipsCache(t *testing.T) {
	f := newCachedFixture(t)
	f.service.breaker = cache.NewCircuitBreaker(&cache.CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Hour, HalfOpenMaxCalls: 1})
	ctx := context.Background()

	f.mr.SetError("LOADING")
	_, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, cache.CircuitBreakerOpen, f.service.breaker.GetState())

	f.mr.SetError("")
	_, err = f.service.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.inner.lists.Load())
	assert.Greater(t, f.count(cache.OpGet, cache.ResultSkipped), 0.0)
	assert.False(t, f.mr.Exists("todos:alice:0"))
}

func TestCachedTaskService_InvalidationBypassesOpenBreaker(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	_, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	require.True(t, f.mr.Exists("todos:alice:0"))

	f.service.breaker = cache.NewCircuitBreaker(&cache.CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Hour, HalfOpenMaxCalls: 1})
	_ = f.service.breaker.Execute(func() error { return errors.New("trip") })
	require.Equal(t, cache.CircuitBreakerOpen, f.service.breaker.GetState())

	_, err = f.service.Create(ctx, "alice", TaskInput{Title: Some("a1")})
	require.NoError(t, err)

	gen, err := f.mr.Get("todos:gen:alice")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
	assert.False(t, f.mr.Exists("todos:alice:0"))
	assert.Equal(t, f.service.generationTTL(), f.mr.TTL("todos:gen:alice"))
}

// gatedTaskService holds the first List between reading the store and
// returning, so a write can land in between.
type gatedTaskService struct {
	TaskService
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (g *gatedTaskService) List(ctx context.Context, callerID string) ([]models.Task, error) {
	tasks, err := g.TaskService.List(ctx, callerID)
	g.once.Do(func() {
		close(g.read)
		<-g.release
	})
	return tasks, err
}

func TestCachedTaskService_ListRacingWriteIsNotServedStale(t *testing.T) {
	f := newCachedFixture(t)
	gated := &gatedTaskService{
		TaskService: f.inner,
		read:        make(chan struct{}),
		release:     make(chan struct{}),
	}
	f.service.taskService = gated
	ctx := context.Background()

	done := make(chan []models.Task)
	go func() {
		tasks, err := f.service.List(ctx, "alice")
		assert.NoError(t, err)
		done <- tasks
	}()

	<-gated.read
	_, err := f.service.Create(ctx, "alice", TaskInput{Title: Some("Buy milk")})
	require.NoError(t, err)
	close(gated.release)

	assert.Empty(t, <-done, "the racing list saw the store before the write")

	tasks, err := f.service.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
}
