package middleware

import (
	"errors"
	"net/http"
	"strings"

	"todo-api/internal/services"

	"github.com/gin-gonic/gin"
)

const callerIDKey = "user_id"

const (
	CodeNoToken      = "NO_TOKEN"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeInternal     = "INTERNAL_ERROR"
)

// TokenVerifier resolves a bearer token to the caller's account id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the verified caller id for downstream handlers.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "No token provided", CodeNoToken)
			return
		}

		callerID, err := verifier.Verify(token)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token expired", CodeTokenExpired)
				return
			}
			abortWithError(c, http.StatusUnauthorized, "Invalid token", CodeInvalidToken)
			return
		}

		c.Set(callerIDKey, callerID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// CallerID returns the id stored by AuthMiddleware.
func CallerID(c *gin.Context) (string, bool) {
	id := c.GetString(callerIDKey)
	return id, id != ""
}

func abortWithError(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		"code":    code,
	})
}
