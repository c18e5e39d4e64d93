package db

import (
	"github.com/auditsuite/tasktimer/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Task{},
		&domain.WorkInterval{},
		&domain.TransitionRecord{},
	)
	if err != nil {
		return err
	}

	return createCustomIndexes(db)
}

func createCustomIndexes(db *gorm.DB) error {
	// At most one open work interval per user
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_work_intervals_open_user
		ON work_intervals (user_id)
		WHERE ended_at IS NULL
	`).Error; err != nil {
		return err
	}

	// My-tasks listing
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_assignee_status
		ON tasks (assignee_id, completion_status)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return err
	}

	// Timeline by task
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transition_records_task_created
		ON transition_records (task_id, created_at)
	`).Error; err != nil {
		return err
	}

	return nil
}
