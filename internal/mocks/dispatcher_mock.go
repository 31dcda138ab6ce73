package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/lanedispatch/internal/lane"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"
)

type DispatcherMock struct {
	mock.Mock
}

func (m *DispatcherMock) Submit(payload datatypes.JSON, timeout time.Duration) (string, error) {
	args := m.Called(payload, timeout)
	return args.String(0), args.Error(1)
}

func (m *DispatcherMock) Complete(id string) bool {
	args := m.Called(id)
	return args.Bool(0)
}

func (m *DispatcherMock) Fail(id string, errMsg string) bool {
	args := m.Called(id, errMsg)
	return args.Bool(0)
}

func (m *DispatcherMock) Resize(newCount int) error {
	args := m.Called(newCount)
	return args.Error(0)
}

func (m *DispatcherMock) UpdateConcurrency(concurrency int) error {
	args := m.Called(concurrency)
	return args.Error(0)
}

func (m *DispatcherMock) PauseAll() {
	m.Called()
}

func (m *DispatcherMock) ResumeAll() {
	m.Called()
}

func (m *DispatcherMock) Stats() []lane.Stats {
	args := m.Called()

	stats, _ := args.Get(0).([]lane.Stats)
	return stats
}

type SweeperMock struct {
	mock.Mock
}

func (m *SweeperMock) Cleanup(ctx context.Context, age time.Duration) (int64, error) {
	args := m.Called(ctx, age)

	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}
