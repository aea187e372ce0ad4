package repositories

import (
	"context"
	"sync"

	"todo-api/internal/models"
)

type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts []models.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{}
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.accounts {
		if r.accounts[i].Email == account.Email {
			return ErrEmailExists
		}
	}
	r.accounts = append(r.accounts, *account)
	return nil
}

func (r *MemoryAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.accounts {
		if r.accounts[i].Email == email {
			account := r.accounts[i]
			return &account, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.accounts {
		if r.accounts[i].ID == id {
			account := r.accounts[i]
			return &account, nil
		}
	}
	return nil, ErrNotFound
}

// MemoryTaskRepository keeps tasks in insertion order and scans linearly.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks []models.Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{}
}

func (r *MemoryTaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]models.Task, 0)
	for i := range r.tasks {
		if r.tasks[i].UserID == ownerID {
			tasks = append(tasks, r.tasks[i].Clone())
		}
	}
	return tasks, nil
}

func (r *MemoryTaskRepository) FindOwned(ctx context.Context, ownerID, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOf(ownerID, id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	task := r.tasks[idx].Clone()
	return &task, nil
}

func (r *MemoryTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = append(r.tasks, task.Clone())
	return nil
}

func (r *MemoryTaskRepository) UpdateOwned(ctx context.Context, ownerID, id string, mutate func(*models.Task) error) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(ownerID, id)
	if idx < 0 {
		return nil, ErrNotFound
	}

	working := r.tasks[idx].Clone()
	if err := mutate(&working); err != nil {
		return nil, err
	}
	// identity and owner are fixed
	working.ID = r.tasks[idx].ID
	working.UserID = r.tasks[idx].UserID
	r.tasks[idx] = working

	updated := working.Clone()
	return &updated, nil
}

func (r *MemoryTaskRepository) DeleteOwned(ctx context.Context, ownerID, id string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(ownerID, id)
	if idx < 0 {
		return nil, ErrNotFound
	}

	removed := r.tasks[idx]
	r.tasks = append(r.tasks[:idx], r.tasks[idx+1:]...)
	return &removed, nil
}

// indexOf must be called with mu held.
func (r *MemoryTaskRepository) indexOf(ownerID, id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id && r.tasks[i].UserID == ownerID {
			return i
		}
	}
	return -1
}
