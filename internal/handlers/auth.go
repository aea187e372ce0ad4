package handlers

import (
	"net/http"

	"todo-api/internal/models"
	"todo-api/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
}

// AccountSummary is the account view returned alongside a fresh token.
type AccountSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func summarize(a *models.Account) AccountSummary {
	return AccountSummary{ID: a.ID, Email: a.Email, Name: a.Name}
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegistrationRequest
	if err := bindJSON(c, &req); err != nil {
		if field, ok := typeMismatchField(err); ok {
			writeError(c, services.RegistrationFieldError(field))
			return
		}
		invalidJSON(c)
		return
	}

	account, token, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Envelope{
		Success: true,
		Message: "User registered successfully",
		Data:    summarize(account),
		Token:   token,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		if field, ok := typeMismatchField(err); ok {
			writeError(c, services.LoginFieldError(field))
			return
		}
		invalidJSON(c)
		return
	}

	account, token, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Message: "Login successful",
		Data:    summarize(account),
		Token:   token,
	})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}

	account, err := h.authService.Profile(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Envelope{Success: true, Data: account.Profile()})
}
