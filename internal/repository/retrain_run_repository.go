package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
)

type RetrainRunRepository struct {
	db *gorm.DB
}

func NewRetrainRunRepository(db *gorm.DB) *RetrainRunRepository {
	return &RetrainRunRepository{db: db}
}

func (r *RetrainRunRepository) Migrate() error {
	if err := r.db.AutoMigrate(&model.RetrainRun{}); err != nil {
		return fmt.Errorf("migrate retrain runs failed: %w", err)
	}
	return nil
}

// Upsert stores a lifecycle snapshot. A run that already reached a terminal
// state keeps it: snapshots arriving late or redelivered are ignored.
func (r *RetrainRunRepository) Upsert(ctx context.Context, run *model.RetrainRun) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated := tx.Model(&model.RetrainRun{}).
			Where("run_id = ? AND finished_at IS NULL", run.RunID).
			Updates(map[string]interface{}{
				"state":           run.State,
				"upstream_status": run.UpstreamStatus,
				"bytes_relayed":   run.BytesRelayed,
				"failure":         run.Failure,
				"finished_at":     run.FinishedAt,
			})
		if updated.Error != nil {
			return updated.Error
		}
		if updated.RowsAffected > 0 {
			return nil
		}

		row := *run
		row.ID = 0
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			DoNothing: true,
		}).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("upsert retrain run failed: %w", err)
	}
	return nil
}

func (r *RetrainRunRepository) GetByRunID(ctx context.Context, runID string) (*model.RetrainRun, error) {
	var run model.RetrainRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get retrain run failed: %w", err)
	}
	return &run, nil
}

func (r *RetrainRunRepository) ListRecent(ctx context.Context, limit int) ([]model.RetrainRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var runs []model.RetrainRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list retrain runs failed: %w", err)
	}
	return runs, nil
}
