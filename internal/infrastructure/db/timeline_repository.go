package db

import (
	"context"

	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type timelineRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTimelineRepository(db *gorm.DB, log *logger.Logger) ports.TimelineRepository {
	return &timelineRepository{
		db:  db,
		log: log,
	}
}

func (r *timelineRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]domain.TransitionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var records []domain.TransitionRecord
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.log.Errorw("timeline_repo_list_failed", "task_id", taskID, "error", err)
		return nil, err
	}
	r.log.Infow("timeline_repo_list_ok", "task_id", taskID, "count", len(records))
	return records, nil
}
