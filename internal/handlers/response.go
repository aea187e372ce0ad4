package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"todo-api/internal/middleware"
	"todo-api/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeTodoNotFound       = "TODO_NOT_FOUND"
	CodeNotFound           = "NOT_FOUND"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Code    string            `json:"code,omitempty"`
	Total   *int              `json:"total,omitempty"`
	Token   string            `json:"token,omitempty"`
	Path    string            `json:"path,omitempty"`
}

func respondError(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message, Code: code})
}

// writeError maps a service error onto its HTTP status and error code.
// Unexpected errors are attached to the context for the request logger and
// never exposed to the client.
func writeError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
			Success: false,
			Message: "Validation error",
			Code:    CodeValidation,
			Errors:  verr.Fields,
		})
	case errors.Is(err, services.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "Todo not found", CodeTodoNotFound)
	case errors.Is(err, services.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found", CodeUserNotFound)
	case errors.Is(err, services.ErrEmailExists):
		respondError(c, http.StatusBadRequest, "Email already registered", CodeEmailExists)
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "Invalid email or password", CodeInvalidCredentials)
	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Internal server error", middleware.CodeInternal)
	}
}

// bindJSON decodes the request body into dst. An empty body decodes as an
// empty object.
func bindJSON(c *gin.Context, dst interface{}) error {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// typeMismatchField names the field whose JSON type did not match, if the
// decode error was caused by one.
func typeMismatchField(err error) (string, bool) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field, true
	}
	return "", false
}

func invalidJSON(c *gin.Context) {
	respondError(c, http.StatusBadRequest, "Invalid JSON body", CodeInvalidJSON)
}

func callerID(c *gin.Context) (string, bool) {
	id, ok := middleware.CallerID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "No token provided", middleware.CodeNoToken)
	}
	return id, ok
}

// NotFound answers requests that match no route.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Envelope{
		Success: false,
		Message: "Endpoint not found",
		Code:    CodeNotFound,
		Path:    c.Request.URL.Path,
	})
}
