package server

import (
	"net/http"
	"strings"
	"time"

	"todo-api/internal/handlers"
	"todo-api/internal/middleware"
	"todo-api/internal/monitoring"
	"todo-api/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Dependencies struct {
	Logger      *zap.Logger
	Tokens      middleware.TokenVerifier
	Auth        services.AuthService
	Tasks       services.TaskService
	Metrics     *monitoring.Metrics
	CORSOrigins []string
}

func NewRouter(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.RecoveryWithLog(logger))
	r.Use(cors.New(corsConfig(deps.CORSOrigins)))

	r.GET("/health", monitoring.HealthHandler())
	if deps.Metrics != nil {
		r.GET("/metrics", deps.Metrics.Handler())
	}

	requireAuth := middleware.AuthMiddleware(deps.Tokens)
	authHandler := handlers.NewAuthHandler(deps.Auth)
	taskHandler := handlers.NewTaskHandler(deps.Tasks)

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/profile", requireAuth, authHandler.Profile)

	todos := api.Group("/todos", requireAuth)
	todos.GET("", taskHandler.GetTasks)
	todos.POST("", taskHandler.CreateTask)
	todos.GET("/:id", taskHandler.GetTaskByID)
	todos.PUT("/:id", taskHandler.UpdateTask)
	todos.DELETE("/:id", taskHandler.DeleteTask)

	// Unmatched paths under /api/todos still sit behind the auth gate.
	r.NoRoute(func(c *gin.Context) {
		if isTodosPath(c.Request.URL.Path) {
			requireAuth(c)
			if c.IsAborted() {
				return
			}
		}
		handlers.NotFound(c)
	})

	return r
}

func isTodosPath(path string) bool {
	return path == "/api/todos" || strings.HasPrefix(path, "/api/todos/")
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
