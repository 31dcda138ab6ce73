package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/joshu-sajeev/lanedispatch/common"
	"github.com/joshu-sajeev/lanedispatch/internal/dto"
	"github.com/joshu-sajeev/lanedispatch/internal/lane"
	"gorm.io/datatypes"
)

type Service struct {
	dispatcher Dispatcher
	sweeper    Sweeper
}

func NewService(dispatcher Dispatcher, sweeper Sweeper) *Service {
	return &Service{dispatcher: dispatcher, sweeper: sweeper}
}

var _ ServiceInterface = (*Service)(nil)

// Submit validates the request and places the job. The returned id is
// assigned before any processing begins; completion arrives later through
// the complete/fail entrypoints or the event stream.
func (s *Service) Submit(ctx context.Context, req *dto.SubmitJobDTO) (*dto.SubmitJobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if !json.Valid(req.Payload) {
		return nil, common.Errf(http.StatusBadRequest, "payload must be valid JSON")
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond

	id, err := s.dispatcher.Submit(datatypes.JSON(req.Payload), timeout)
	if err != nil {
		if errors.Is(err, lane.ErrShutdown) {
			return nil, common.Errf(http.StatusServiceUnavailable, "dispatcher is shut down")
		}
		return nil, common.Errf(http.StatusInternalServerError, "failed to submit job")
	}

	return &dto.SubmitJobResponseDTO{ID: id}, nil
}

// Complete finalizes a running job as completed. An unknown or already
// finalized id reports acted=false and is not an error.
func (s *Service) Complete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	return s.dispatcher.Complete(id), nil
}

// Fail finalizes a running job as failed with the given error text.
func (s *Service) Fail(ctx context.Context, id string, errMsg string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	return s.dispatcher.Fail(id, errMsg), nil
}

// Resize changes the number of lanes.
func (s *Service) Resize(ctx context.Context, count int) error {
	if err := ctx.Err(); err != nil {
		return common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if err := s.dispatcher.Resize(count); err != nil {
		switch {
		case errors.Is(err, lane.ErrInvalidLaneCount):
			return common.Errf(http.StatusBadRequest, "lane count must be positive")
		case errors.Is(err, lane.ErrShutdown):
			return common.Errf(http.StatusServiceUnavailable, "dispatcher is shut down")
		default:
			return common.Errf(http.StatusInternalServerError, "failed to resize lanes")
		}
	}
	return nil
}

// UpdateConcurrency applies a new per-lane concurrency cap.
func (s *Service) UpdateConcurrency(ctx context.Context, limit int) error {
	if err := ctx.Err(); err != nil {
		return common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if err := s.dispatcher.UpdateConcurrency(limit); err != nil {
		switch {
		case errors.Is(err, lane.ErrInvalidConcurrency):
			return common.Errf(http.StatusBadRequest, "concurrency must be positive")
		case errors.Is(err, lane.ErrShutdown):
			return common.Errf(http.StatusServiceUnavailable, "dispatcher is shut down")
		default:
			return common.Errf(http.StatusInternalServerError, "failed to update concurrency")
		}
	}
	return nil
}

func (s *Service) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	s.dispatcher.PauseAll()
	return nil
}

func (s *Service) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	s.dispatcher.ResumeAll()
	return nil
}

func (s *Service) Stats(ctx context.Context) ([]lane.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	return s.dispatcher.Stats(), nil
}

// Cleanup deletes finished jobs older than the given age from storage.
func (s *Service) Cleanup(ctx context.Context, age time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	count, err := s.sweeper.Cleanup(ctx, age)
	if err != nil {
		return 0, common.Errf(http.StatusInternalServerError, "failed to clean up finished jobs")
	}
	return count, nil
}
