package repository

import (
	"context"
	"errors"
	"strings"

	"service-desk/backend/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

// TaskFilter narrows List queries on tickets
type TaskFilter struct {
	Status       *models.TaskStatus
	UserID       *uint
	WithMessages bool
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type ManagerRepository interface {
	Create(ctx context.Context, manager *models.Manager) error
	GetByID(ctx context.Context, id uint) (*models.Manager, error)
	List(ctx context.Context) ([]models.Manager, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uint, withMessages bool) (*models.Task, error)
	// FindActiveByUser returns every OPEN or IN_PROGRESS ticket of a user.
	FindActiveByUser(ctx context.Context, userID uint) ([]models.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	Save(ctx context.Context, task *models.Task) error
}

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByTask(ctx context.Context, taskID uint) ([]models.Message, error)
}

// Store groups the repositories and runs them inside a shared transaction
type Store interface {
	Users() UserRepository
	Managers() ManagerRepository
	Tasks() TaskRepository
	Messages() MessageRepository
	// Transaction runs fn against a Store bound to one database transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// GormStore implements Store on top of gorm
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository       { return &GormUserRepository{db: s.db} }
func (s *GormStore) Managers() ManagerRepository { return &GormManagerRepository{db: s.db} }
func (s *GormStore) Tasks() TaskRepository       { return &GormTaskRepository{db: s.db} }
func (s *GormStore) Messages() MessageRepository { return &GormMessageRepository{db: s.db} }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver errors onto the repository sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case IsUniqueViolation(err):
		return errors.Join(ErrDuplicate, err)
	default:
		return err
	}
}

// IsUniqueViolation recognises unique-constraint failures from postgres and sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
