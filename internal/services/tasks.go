package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todo-api/internal/models"
	"todo-api/internal/repositories"

	"github.com/gofrs/uuid"
)

// TaskService exposes a caller's own tasks. Tasks owned by anyone else are
// reported as ErrTaskNotFound.
type TaskService interface {
	List(ctx context.Context, callerID string) ([]models.Task, error)
	Get(ctx context.Context, callerID, taskID string) (*models.Task, error)
	Create(ctx context.Context, callerID string, in TaskInput) (*models.Task, error)
	Update(ctx context.Context, callerID, taskID string, in TaskInput) (*models.Task, error)
	Delete(ctx context.Context, callerID, taskID string) (*models.Task, error)
}

type TaskServiceImpl struct {
	tasks repositories.TaskRepository
	now   func() time.Time
	newID func() (string, error)
}

func NewTaskService(tasks repositories.TaskRepository) *TaskServiceImpl {
	return &TaskServiceImpl{
		tasks: tasks,
		now:   time.Now,
		newID: func() (string, error) {
			id, err := uuid.NewV4()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

func (s *TaskServiceImpl) List(ctx context.Context, callerID string) ([]models.Task, error) {
	tasks, err := s.tasks.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (s *TaskServiceImpl) Get(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	task, err := s.tasks.FindOwned(ctx, callerID, taskID)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (s *TaskServiceImpl) Create(ctx context.Context, callerID string, in TaskInput) (*models.Task, error) {
	if err := ValidateTaskInput(in, true); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate task id: %w", err)
	}

	now := s.now().UTC()
	task := &models.Task{
		ID:        id,
		Priority:  models.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    callerID,
	}
	in.Completed = Optional[bool]{}
	applyTaskInput(task, in)

	if err := s.tasks.Insert(ctx, task); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// Update applies the present fields of in. An empty input only refreshes
// UpdatedAt.
func (s *TaskServiceImpl) Update(ctx context.Context, callerID, taskID string, in TaskInput) (*models.Task, error) {
	if !in.IsEmpty() {
		if err := ValidateTaskInput(in, false); err != nil {
			return nil, err
		}
	}

	task, err := s.tasks.UpdateOwned(ctx, callerID, taskID, func(t *models.Task) error {
		applyTaskInput(t, in)
		t.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (s *TaskServiceImpl) Delete(ctx context.Context, callerID, taskID string) (*models.Task, error) {
	task, err := s.tasks.DeleteOwned(ctx, callerID, taskID)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func notFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrTaskNotFound
	}
	return fmt.Errorf("task store: %w", err)
}
