package repositories

import (
	"context"
	"errors"
	"fmt"

	"todo-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate creates or updates the tables backing the gorm repositories.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Account{}, &models.Task{})
}

type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("email = ?", account.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return ErrEmailExists
		}

		if err := tx.Create(account).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailExists
			}
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
}

func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *GormAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

type GormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	if err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("seq asc").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *GormTaskRepository) FindOwned(ctx context.Context, ownerID, id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// Insert appends task after the highest existing sequence. Concurrent
// writers can pick the same sequence; the unique index rejects the loser,
// which then retries.
func (r *GormTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	return retryOnDuplicate(maxInsertAttempts, func() error {
		return r.insertOnce(ctx, task)
	})
}

func (r *GormTaskRepository) insertOnce(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&models.Task{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("next task sequence: %w", err)
		}
		task.Seq = maxSeq + 1

		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
}

func (r *GormTaskRepository) UpdateOwned(ctx context.Context, ownerID, id string, mutate func(*models.Task) error) (*models.Task, error) {
	var updated models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := lockForUpdate(tx).Where("id = ? AND user_id = ?", id, ownerID).First(&task).Error; err != nil {
			return translate(err)
		}

		seq := task.Seq
		if err := mutate(&task); err != nil {
			return err
		}
		task.ID = id
		task.UserID = ownerID
		task.Seq = seq

		// Save writes zero values too, so cleared fields are persisted.
		if err := tx.Save(&task).Error; err != nil {
			return fmt.Errorf("save task: %w", err)
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *GormTaskRepository) DeleteOwned(ctx context.Context, ownerID, id string) (*models.Task, error) {
	var removed models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ? AND user_id = ?", id, ownerID).First(&removed).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

const maxInsertAttempts = 5

// retryOnDuplicate reruns fn while it fails on a unique-key conflict.
func retryOnDuplicate(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
