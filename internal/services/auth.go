package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"todo-api/internal/models"
	"todo-api/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
)

type RegistrationRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"notblank"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var registrationMessages = map[string]string{
	"email":    "Valid email is required",
	"password": "Password must be at least 6 characters",
	"name":     "Name is required",
}

var loginMessages = map[string]string{
	"email":    "Email is required",
	"password": "Password is required",
}

// RegistrationFieldError builds the validation error reported when a
// registration field arrives with the wrong JSON type.
func RegistrationFieldError(field string) error {
	return fieldError(registrationMessages, field)
}

func LoginFieldError(field string) error {
	return fieldError(loginMessages, field)
}

func fieldError(messages map[string]string, field string) error {
	msg, ok := messages[field]
	if !ok {
		msg = "Invalid value"
	}
	return &ValidationError{Fields: map[string]string{field: msg}}
}

type AuthService interface {
	Register(ctx context.Context, req RegistrationRequest) (*models.Account, string, error)
	Login(ctx context.Context, req LoginRequest) (*models.Account, string, error)
	Profile(ctx context.Context, accountID string) (*models.Account, error)
}

type AuthServiceImpl struct {
	accounts  repositories.AccountRepository
	tokens    TokenCodec
	cost      int
	validate  *validator.Validate
	dummyHash []byte
	now       func() time.Time
}

func NewAuthService(accounts repositories.AccountRepository, tokens TokenCodec, bcryptCost int) (*AuthServiceImpl, error) {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, bcryptCost)
	}

	// Unknown emails are compared against this hash so both login failures
	// take the same time.
	dummy, err := bcrypt.GenerateFromPassword([]byte("todo-api-placeholder"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare placeholder hash: %w", err)
	}

	return &AuthServiceImpl{
		accounts:  accounts,
		tokens:    tokens,
		cost:      bcryptCost,
		validate:  newValidator(),
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// check runs struct validation and reports every failed field with the
// message from messages.
func (s *AuthServiceImpl) check(req interface{}, messages map[string]string) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = "Invalid value"
		}
		verr.add(fe.Field(), msg)
	}
	return verr.orNil()
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegistrationRequest) (*models.Account, string, error) {
	if err := s.check(req, registrationMessages); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, "", fmt.Errorf("generate account id: %w", err)
	}

	account := &models.Account{
		ID:           id.String(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrEmailExists) {
			return nil, "", ErrEmailExists
		}
		return nil, "", fmt.Errorf("create account: %w", err)
	}

	token, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, req LoginRequest) (*models.Account, string, error) {
	if err := s.check(req, loginMessages); err != nil {
		return nil, "", err
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, "", fmt.Errorf("find account: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

func (s *AuthServiceImpl) Profile(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}
