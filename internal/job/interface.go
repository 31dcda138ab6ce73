package job

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/lanedispatch/internal/dto"
	"github.com/joshu-sajeev/lanedispatch/internal/lane"
	"gorm.io/datatypes"
)

// Dispatcher is what the service needs from the lane set manager.
type Dispatcher interface {
	Submit(payload datatypes.JSON, timeout time.Duration) (string, error)
	Complete(id string) bool
	Fail(id string, errMsg string) bool
	Resize(newCount int) error
	UpdateConcurrency(concurrency int) error
	PauseAll()
	ResumeAll()
	Stats() []lane.Stats
}

// Sweeper is what the service needs from the persistence adapter.
type Sweeper interface {
	Cleanup(ctx context.Context, age time.Duration) (int64, error)
}

// ServiceInterface defines the contract for dispatcher business logic.
type ServiceInterface interface {
	Submit(ctx context.Context, req *dto.SubmitJobDTO) (*dto.SubmitJobResponseDTO, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id string, errMsg string) (bool, error)
	Resize(ctx context.Context, count int) error
	UpdateConcurrency(ctx context.Context, limit int) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stats(ctx context.Context) ([]lane.Stats, error)
	Cleanup(ctx context.Context, age time.Duration) (int64, error)
}

// HandlerInterface defines the contract for HTTP request handlers.
type HandlerInterface interface {
	Submit(c *gin.Context)
	Complete(c *gin.Context)
	Fail(c *gin.Context)
	Resize(c *gin.Context)
	UpdateConcurrency(c *gin.Context)
	Pause(c *gin.Context)
	Resume(c *gin.Context)
	Stats(c *gin.Context)
	Cleanup(c *gin.Context)
}
