package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/lanedispatch/internal/dto"
	"github.com/joshu-sajeev/lanedispatch/internal/lane"
	"github.com/stretchr/testify/mock"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Submit(ctx context.Context, req *dto.SubmitJobDTO) (*dto.SubmitJobResponseDTO, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*dto.SubmitJobResponseDTO)
	return resp, args.Error(1)
}

func (m *ServiceMock) Complete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *ServiceMock) Fail(ctx context.Context, id string, errMsg string) (bool, error) {
	args := m.Called(ctx, id, errMsg)
	return args.Bool(0), args.Error(1)
}

func (m *ServiceMock) Resize(ctx context.Context, count int) error {
	args := m.Called(ctx, count)
	return args.Error(0)
}

func (m *ServiceMock) UpdateConcurrency(ctx context.Context, limit int) error {
	args := m.Called(ctx, limit)
	return args.Error(0)
}

func (m *ServiceMock) Pause(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *ServiceMock) Resume(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *ServiceMock) Stats(ctx context.Context) ([]lane.Stats, error) {
	args := m.Called(ctx)

	stats, _ := args.Get(0).([]lane.Stats)
	return stats, args.Error(1)
}

func (m *ServiceMock) Cleanup(ctx context.Context, age time.Duration) (int64, error) {
	args := m.Called(ctx, age)

	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}
