package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/database"
	"todo-api/internal/logging"
	"todo-api/internal/models"
	"todo-api/internal/monitoring"
	"todo-api/internal/repositories"
	"todo-api/internal/server"
	"todo-api/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	demoEmail    = "test@example.com"
	demoPassword = "password123"
)

// App holds the wired components of one server instance.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Router  *gin.Engine
	Auth    services.AuthService
	Tasks   services.TaskService
	Metrics *monitoring.Metrics

	closers []func() error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	accounts, tasks, err := app.openStorage()
	if err != nil {
		app.Close()
		return nil, err
	}

	codec, err := services.NewJWTCodec(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		app.Close()
		return nil, err
	}

	authService, err := services.NewAuthService(accounts, codec, cfg.Auth.BCryptCost)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Metrics = monitoring.NewMetrics(monitoring.Options{CollectGoMetrics: true, CollectProcess: true})
	app.Auth = authService
	app.Tasks = app.withCache(services.NewTaskService(tasks))

	app.Router = server.NewRouter(server.Dependencies{
		Logger:      logger,
		Tokens:      codec,
		Auth:        app.Auth,
		Tasks:       app.Tasks,
		Metrics:     app.Metrics,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
	})
	return app, nil
}

func (a *App) openStorage() (repositories.AccountRepository, repositories.TaskRepository, error) {
	if a.Config.Storage.Driver == config.StorageMemory {
		return repositories.NewMemoryAccountRepository(), repositories.NewMemoryTaskRepository(), nil
	}

	poolConfig := database.PoolConfigFrom(a.Config)
	poolConfig.Logger = a.Logger
	pool, err := database.NewDatabasePool(poolConfig)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, pool.Close)

	if err := repositories.Migrate(pool.DB); err != nil {
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	a.Logger.Info("database connected", zap.Any("pool", pool.Stats()))

	return repositories.NewGormAccountRepository(pool.DB), repositories.NewGormTaskRepository(pool.DB), nil
}

// withCache wraps tasks in the Redis list cache when it is enabled. An
// unreachable Redis is logged and the circuit breaker takes over.
func (a *App) withCache(tasks services.TaskService) services.TaskService {
	if !a.Config.Redis.Enabled {
		return tasks
	}

	redisCache := cache.NewRedisCache(cache.CacheConfigFrom(a.Config))
	a.closers = append(a.closers, redisCache.Close)

	if err := redisCache.Health(context.Background()); err != nil {
		a.Logger.Warn("redis cache unreachable at startup", zap.String("addr", a.Config.GetRedisAddr()), zap.Error(err))
	}

	return services.NewCachedTaskService(
		tasks,
		redisCache,
		a.newCacheBreaker(),
		cache.NewOperationCounter(a.Metrics.Registry()),
		a.Config.Redis.TTL,
		a.Logger,
	)
}

// newCacheBreaker returns the cache's circuit breaker, logging each state
// change with the breaker's counters.
func (a *App) newCacheBreaker() *cache.CircuitBreaker {
	var breaker *cache.CircuitBreaker
	cfg := cache.DefaultCircuitBreakerConfig()
	cfg.OnStateChange = func(from, to cache.CircuitBreakerState) {
		log := a.Logger.Info
		if to == cache.CircuitBreakerOpen {
			log = a.Logger.Warn
		}
		log("task cache circuit breaker changed state",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.Any("breaker", breaker.GetStats()),
		)
	}
	breaker = cache.NewCircuitBreaker(cfg)
	return breaker
}

// seedDemoData registers the demo account with one task unless it exists.
func (a *App) seedDemoData(ctx context.Context) error {
	account, _, err := a.Auth.Register(ctx, services.RegistrationRequest{
		Email:    demoEmail,
		Password: demoPassword,
		Name:     "Test User",
	})
	if errors.Is(err, services.ErrEmailExists) {
		a.Logger.Info("demo account already present", zap.String("email", demoEmail))
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed demo account: %w", err)
	}

	_, err = a.Tasks.Create(ctx, account.ID, services.TaskInput{
		Title:       services.Some("Explore the Todo API"),
		Description: services.Some("Register, log in and manage your todos through the REST endpoints"),
		Priority:    services.Some(models.PriorityHigh),
	})
	if err != nil {
		return fmt.Errorf("seed demo todo: %w", err)
	}

	a.Logger.Info("demo data seeded", zap.String("email", demoEmail))
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.Logger != nil {
			a.Logger.Warn("error closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	if cfg.Storage.SeedDemo {
		if err := app.seedDemoData(context.Background()); err != nil {
			logger.Fatal("failed to seed demo data", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("todo api server started",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Server.Environment),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("cache", cfg.Redis.Enabled),
			zap.String("health", "/health"),
			zap.String("metrics", "/metrics"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped", zap.Duration("uptime", app.Metrics.Uptime()))
}
