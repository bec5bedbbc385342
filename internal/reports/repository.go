package reports

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, outcome *PipelineOutcome) error
	ListSince(ctx context.Context, since time.Time) ([]PipelineOutcome, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, outcome *PipelineOutcome) error {
	return r.db.WithContext(ctx).Create(outcome).Error
}

func (r *repository) ListSince(ctx context.Context, since time.Time) ([]PipelineOutcome, error) {
	var outcomes []PipelineOutcome
	err := r.db.WithContext(ctx).
		Where("attempted_at >= ?", since).
		Order("attempted_at ASC").
		Find(&outcomes).Error
	return outcomes, err
}
