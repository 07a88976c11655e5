package repository

import (
	"context"
	"time"

	"service-desk/backend/internal/models"

	"gorm.io/gorm"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, translate(err)
}

type GormManagerRepository struct {
	db *gorm.DB
}

func NewGormManagerRepository(db *gorm.DB) *GormManagerRepository {
	return &GormManagerRepository{db: db}
}

func (r *GormManagerRepository) Create(ctx context.Context, manager *models.Manager) error {
	return translate(r.db.WithContext(ctx).Create(manager).Error)
}

func (r *GormManagerRepository) GetByID(ctx context.Context, id uint) (*models.Manager, error) {
	var manager models.Manager
	if err := r.db.WithContext(ctx).First(&manager, id).Error; err != nil {
		return nil, translate(err)
	}
	return &manager, nil
}

func (r *GormManagerRepository) List(ctx context.Context) ([]models.Manager, error) {
	var managers []models.Manager
	err := r.db.WithContext(ctx).Order("id ASC").Find(&managers).Error
	return managers, translate(err)
}

type GormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return translate(r.db.WithContext(ctx).Create(task).Error)
}

func (r *GormTaskRepository) GetByID(ctx context.Context, id uint, withMessages bool) (*models.Task, error) {
	var task models.Task
	q := r.db.WithContext(ctx)
	if withMessages {
		q = preloadMessages(q)
	}
	if err := q.First(&task, id).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

func (r *GormTaskRepository) FindActiveByUser(ctx context.Context, userID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, models.ActiveStatuses).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, translate(err)
}

func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var tasks []models.Task
	q := r.db.WithContext(ctx).Order("id ASC")
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.WithMessages {
		q = preloadMessages(q)
	}
	err := q.Find(&tasks).Error
	return tasks, translate(err)
}

// Save writes the mutable columns of a ticket and refreshes updated_at.
func (r *GormTaskRepository) Save(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(task).
		Select("manager_id", "status", "close_date", "updated_at").
		Updates(map[string]any{
			"manager_id": task.ManagerID,
			"status":     task.Status,
			"close_date": task.CloseDate,
			"updated_at": task.UpdatedAt,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return translate(r.db.WithContext(ctx).Create(message).Error)
}

func (r *GormMessageRepository) ListByTask(ctx context.Context, taskID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&messages).Error
	return messages, translate(err)
}

func preloadMessages(q *gorm.DB) *gorm.DB {
	return q.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp ASC").Order("id ASC")
	})
}
