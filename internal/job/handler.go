package job

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/lanedispatch/common"
	"github.com/joshu-sajeev/lanedispatch/internal/dto"
	"github.com/joshu-sajeev/lanedispatch/middleware"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(s ServiceInterface) *Handler {
	return &Handler{service: s}
}

var _ HandlerInterface = (*Handler)(nil)

// Submit handles job submission. Returns HTTP 201 with the generated id.
func (h *Handler) Submit(c *gin.Context) {
	var req dto.SubmitJobDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.Submit(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Complete handles the external completion signal for a running job.
func (h *Handler) Complete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	acted, err := h.service.Complete(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"finalized": acted})
}

// Fail handles the external failure signal, with optional error text.
func (h *Handler) Fail(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	var body dto.FailJobDTO
	if !middleware.Bind(c, &body) {
		return
	}

	acted, err := h.service.Fail(c.Request.Context(), id, body.Error)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"finalized": acted})
}

// Resize handles lane topology changes.
func (h *Handler) Resize(c *gin.Context) {
	var body dto.ResizeDTO
	if !middleware.Bind(c, &body) {
		return
	}

	if err := h.service.Resize(c.Request.Context(), body.Count); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateConcurrency handles per-lane cap changes.
func (h *Handler) UpdateConcurrency(c *gin.Context) {
	var body dto.ConcurrencyDTO
	if !middleware.Bind(c, &body) {
		return
	}

	if err := h.service.UpdateConcurrency(c.Request.Context(), body.Limit); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Pause(c *gin.Context) {
	if err := h.service.Pause(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Resume(c *gin.Context) {
	if err := h.service.Resume(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Stats returns per-lane counters in lane-index order.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Cleanup deletes finished jobs older than the age_hours query parameter.
func (h *Handler) Cleanup(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("age_hours", "168"))
	if err != nil || hours < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "age_hours must be a positive number"))
		return
	}

	count, err := h.service.Cleanup(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": count})
}
