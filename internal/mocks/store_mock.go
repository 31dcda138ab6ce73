package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/lanedispatch/internal/models"
	"github.com/stretchr/testify/mock"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) UpsertJob(ctx context.Context, job *models.JobRecord) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *StoreMock) BatchUpsertJobs(ctx context.Context, jobs []*models.JobRecord) error {
	args := m.Called(ctx, jobs)
	return args.Error(0)
}

func (m *StoreMock) FindJobsByStatus(ctx context.Context, statuses []models.JobStatus) ([]*models.JobRecord, error) {
	args := m.Called(ctx, statuses)

	jobs, _ := args.Get(0).([]*models.JobRecord)
	return jobs, args.Error(1)
}

func (m *StoreMock) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)

	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}
