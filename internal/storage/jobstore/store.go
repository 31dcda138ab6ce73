package jobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/joshu-sajeev/lanedispatch/internal/models"
	"github.com/joshu-sajeev/lanedispatch/internal/persistence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobStore is the gorm-backed implementation of the persistence boundary.
type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

var _ persistence.Store = (*JobStore)(nil)

// UpsertJob creates the record if storage has not seen the id, otherwise
// updates its status, timestamps and error.
func (s *JobStore) UpsertJob(ctx context.Context, job *models.JobRecord) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(job).Error; err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// BatchUpsertJobs persists a batch of transitions atomically: either every
// record lands or none does.
func (s *JobStore) BatchUpsertJobs(ctx context.Context, jobs []*models.JobRecord) error {
	if len(jobs) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(jobs).Error
	})
	if err != nil {
		return fmt.Errorf("batch upsert jobs: %w", err)
	}
	return nil
}

// FindJobsByStatus returns every job whose status is in the given set.
func (s *JobStore) FindJobsByStatus(ctx context.Context, statuses []models.JobStatus) ([]*models.JobRecord, error) {
	var jobs []*models.JobRecord
	if err := s.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at asc").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("find jobs by status: %w", err)
	}
	return jobs, nil
}

// DeleteTerminalJobsBefore removes finished jobs whose completed_at is older
// than the cutoff. Pending and running rows are never touched.
func (s *JobStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", models.TerminalStatuses, cutoff).
		Delete(&models.JobRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete terminal jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
