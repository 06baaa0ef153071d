package repository

import (
	"context"

	"github.com/timmy/newstagger/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles batch job records.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new batch job.
func (r *JobRepository) Create(ctx context.Context, job *domain.BatchJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Update saves all fields of an existing batch job.
func (r *JobRepository) Update(ctx context.Context, job *domain.BatchJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// GetByID retrieves a batch job by ID. Returns gorm.ErrRecordNotFound when absent.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	var job domain.BatchJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns batch jobs, newest first.
func (r *JobRepository) List(ctx context.Context, limit, offset int) ([]domain.BatchJob, error) {
	var jobs []domain.BatchJob
	query := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
