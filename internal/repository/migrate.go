package repository

import (
	"fmt"

	"service-desk/backend/internal/models"

	"gorm.io/gorm"
)

// activeTaskIndex enforces at most one OPEN or IN_PROGRESS ticket per user.
const activeTaskIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_one_active_per_user
	ON tasks (user_id) WHERE status IN ('open', 'in_progress')`

// Migrate creates or updates the schema and the indexes gorm tags cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Manager{},
		&models.Task{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := db.Exec(activeTaskIndex).Error; err != nil {
		return fmt.Errorf("failed to create index idx_tasks_one_active_per_user: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_task_time ON messages(task_id, timestamp)").Error; err != nil {
		return fmt.Errorf("failed to create index idx_messages_task_time: %w", err)
	}

	return nil
}
