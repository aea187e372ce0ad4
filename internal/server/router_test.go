package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"todo-api/internal/monitoring"
	"todo-api/internal/repositories"
	"todo-api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(t *testing.T, origins []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec, err := services.NewJWTCodec("router-secret", "todo-api", time.Hour)
	require.NoError(t, err)
	auth, err := services.NewAuthService(repositories.NewMemoryAccountRepository(), codec, bcrypt.MinCost)
	require.NoError(t, err)

	return NewRouter(Dependencies{
		Tokens:      codec,
		Auth:        auth,
		Tasks:       services.NewTaskService(repositories.NewMemoryTaskRepository()),
		Metrics:     monitoring.NewMetrics(monitoring.Options{}),
		CORSOrigins: origins,
	})
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	r := newTestRouter(t, []string{"*"})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/todos", http.StatusUnauthorized},
		{http.MethodPost, "/api/todos", http.StatusUnauthorized},
		{http.MethodGet, "/api/todos/abc", http.StatusUnauthorized},
		{http.MethodPut, "/api/todos/abc", http.StatusUnauthorized},
		{http.MethodDelete, "/api/todos/abc", http.StatusUnauthorized},
		{http.MethodGet, "/api/auth/profile", http.StatusUnauthorized},
		{http.MethodGet, "/api/nothing-here", http.StatusNotFound},
		{http.MethodPatch, "/api/todos/abc", http.StatusUnauthorized},
		{http.MethodGet, "/api/todos/a/b", http.StatusUnauthorized},
		{http.MethodDelete, "/api/todos", http.StatusUnauthorized},
		{http.MethodGet, "/api/todosx", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRouter_UnmatchedTodoRouteWithToken(t *testing.T) {
	r := newTestRouter(t, nil)

	body := `{"email":"r@example.com","password":"secret1","name":"R"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var registered struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/todos/abc", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Endpoint not found","code":"NOT_FOUND","path":"/api/todos/abc"}`, w.Body.String())
}

func TestRouter_NotFoundIncludesPath(t *testing.T) {
	r := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/does/not/exist", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Endpoint not found","code":"NOT_FOUND","path":"/does/not/exist"}`, w.Body.String())
}

func TestRouter_CORS(t *testing.T) {
	r := newTestRouter(t, []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/todos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	assert.True(t, corsConfig(nil).AllowAllOrigins)

	cfg := corsConfig([]string{"https://a.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example.com"}, cfg.AllowOrigins)
}
