package repositories

import (
	"context"
	"errors"

	"todo-api/internal/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrEmailExists = errors.New("email already exists")
)

type AccountRepository interface {
	// Create stores a new account, failing with ErrEmailExists when the
	// email is already registered. The check and insert are atomic.
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// TaskRepository stores tasks. Every lookup is scoped by owner: a task owned
// by someone else is reported as ErrNotFound.
type TaskRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error)
	FindOwned(ctx context.Context, ownerID, id string) (*models.Task, error)
	Insert(ctx context.Context, task *models.Task) error
	// UpdateOwned runs mutate against the stored task and persists the result
	// as one atomic step. If mutate returns an error nothing is written.
	UpdateOwned(ctx context.Context, ownerID, id string, mutate func(*models.Task) error) (*models.Task, error)
	DeleteOwned(ctx context.Context, ownerID, id string) (*models.Task, error)
}
