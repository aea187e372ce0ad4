package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"todo-api/internal/models"
	"todo-api/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	service  *AuthServiceImpl
	accounts *repositories.MemoryAccountRepository
	codec    *JWTCodec
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	accounts := repositories.NewMemoryAccountRepository()
	codec, err := NewJWTCodec(testSecret, "todo-api", time.Hour)
	require.NoError(t, err)

	service, err := NewAuthService(accounts, codec, bcrypt.MinCost)
	require.NoError(t, err)
	return authFixture{service: service, accounts: accounts, codec: codec}
}

func validRegistration() RegistrationRequest {
	return RegistrationRequest{Email: "alice@example.com", Password: "secret1", Name: "Alice"}
}

func TestNewAuthService_RejectsBadCost(t *testing.T) {
	_, err := NewAuthService(repositories.NewMemoryAccountRepository(), nil, bcrypt.MaxCost+1)
	assert.Error(t, err)
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	account, token, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, "Alice", account.Name)
	assert.False(t, account.CreatedAt.IsZero())

	assert.NotEqual(t, "secret1", account.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("secret1")))

	subject, err := f.codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, subject)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		req    RegistrationRequest
		fields map[string]string
	}{
		{
			name:   "empty request",
			req:    RegistrationRequest{},
			fields: map[string]string{"email": "Valid email is required", "password": "Password must be at least 6 characters", "name": "Name is required"},
		},
		{
			name:   "bad email",
			req:    RegistrationRequest{Email: "not-an-email", Password: "secret1", Name: "A"},
			fields: map[string]string{"email": "Valid email is required"},
		},
		{
			name:   "short password",
			req:    RegistrationRequest{Email: "a@example.com", Password: "12345", Name: "A"},
			fields: map[string]string{"password": "Password must be at least 6 characters"},
		},
		{
			name:   "blank name",
			req:    RegistrationRequest{Email: "a@example.com", Password: "secret1", Name: "   "},
			fields: map[string]string{"name": "Name is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			_, _, err := f.service.Register(context.Background(), tt.req)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.Equal(t, tt.fields, verr.Fields)
		})
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first, _, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	again := validRegistration()
	again.Password = "different"
	_, _, err = f.service.Register(ctx, again)
	assert.ErrorIs(t, err, ErrEmailExists)

	_, _, err = f.service.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "secret1"})
	assert.NoError(t, err, "original credentials still work")

	stored, err := f.accounts.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
}

func TestAuthService_ConcurrentRegistrationCreatesOneAccount(t *testing.T) {
	f := newAuthFixture(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.service.Register(context.Background(), validRegistration())
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrEmailExists)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registered, _, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	account, token, err := f.service.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)

	subject, err := f.codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, subject)

	_, _, err = f.service.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.service.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.service.Login(ctx, LoginRequest{Email: "ALICE@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "email lookup is case-sensitive")
}

func TestAuthService_LoginValidation(t *testing.T) {
	f := newAuthFixture(t)

	_, _, err := f.service.Login(context.Background(), LoginRequest{})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"email": "Email is required", "password": "Password is required"}, verr.Fields)
}

func TestAuthService_Profile(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registered, _, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	account, err := f.service.Profile(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountProfile{
		ID:        registered.ID,
		Email:     "alice@example.com",
		Name:      "Alice",
		CreatedAt: registered.CreatedAt,
	}, account.Profile())

	_, err = f.service.Profile(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFieldErrors(t *testing.T) {
	var verr *ValidationError

	require.True(t, errors.As(RegistrationFieldError("email"), &verr))
	assert.Equal(t, "Valid email is required", verr.Fields["email"])

	require.True(t, errors.As(LoginFieldError("password"), &verr))
	assert.Equal(t, "Password is required", verr.Fields["password"])
}
