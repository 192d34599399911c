package repository

import (
	"context"
	"errors"
	"time"

	"catalog-import-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

// ImportJobsRepositoryInterface abstracts job persistence for the
// orchestrator and handlers (mockable in tests)
type ImportJobsRepositoryInterface interface {
	Create(ctx context.Context, job *models.ImportJob) error
	GetByID(ctx context.Context, tenantID string, jobID uuid.UUID) (*models.ImportJob, error)
	List(ctx context.Context, tenantID string, status *models.ImportJobStatus, page, limit int) ([]models.ImportJob, int64, error)
	Save(ctx context.Context, job *models.ImportJob) error
	UpdateProgress(ctx context.Context, jobID uuid.UUID, processed, success, failed int) error
	Delete(ctx context.Context, tenantID string, jobID uuid.UUID) error
}

// ImportJobsRepository handles database operations for import jobs
type ImportJobsRepository struct {
	db *gorm.DB
}

var _ ImportJobsRepositoryInterface = (*ImportJobsRepository)(nil)

// NewImportJobsRepository creates a new ImportJobsRepository
func NewImportJobsRepository(db *gorm.DB) *ImportJobsRepository {
	return &ImportJobsRepository{db: db}
}

// Create persists a new job record
func (r *ImportJobsRepository) Create(ctx context.Context, job *models.ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job scoped to its owning tenant
func (r *ImportJobsRepository) GetByID(ctx context.Context, tenantID string, jobID uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, jobID).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// List retrieves jobs for a tenant, newest first, optionally filtered by status
func (r *ImportJobsRepository) List(ctx context.Context, tenantID string, status *models.ImportJobStatus, page, limit int) ([]models.ImportJob, int64, error) {
	var jobs []models.ImportJob
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ImportJob{}).Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&jobs).Error
	return jobs, total, err
}

// Save persists the full job record, including status transitions and the
// accumulated error/warning lists
func (r *ImportJobsRepository) Save(ctx context.Context, job *models.ImportJob) error {
	job.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(job).Error
}

// UpdateProgress writes the per-row counters so observers polling the job
// see monotonically advancing progress mid-batch
func (r *ImportJobsRepository) UpdateProgress(ctx context.Context, jobID uuid.UUID, processed, success, failed int) error {
	return r.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"processed_rows": processed,
			"success_count":  success,
			"failed_count":   failed,
			"updated_at":     time.Now(),
		}).Error
}

// Delete removes a job record. The processing guard is enforced by the
// caller, which has already loaded the job and checked its status.
func (r *ImportJobsRepository) Delete(ctx context.Context, tenantID string, jobID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, jobID).
		Delete(&models.ImportJob{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
