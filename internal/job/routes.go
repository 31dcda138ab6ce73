package job

import "github.com/gin-gonic/gin"

// RegisterRoutes wires the dispatcher HTTP surface onto the router.
func RegisterRoutes(r gin.IRouter, h HandlerInterface) {
	jobs := r.Group("/jobs")
	{
		jobs.POST("", h.Submit)
		jobs.POST("/:id/complete", h.Complete)
		jobs.POST("/:id/fail", h.Fail)
		jobs.POST("/cleanup", h.Cleanup)
	}

	lanes := r.Group("/lanes")
	{
		lanes.GET("/stats", h.Stats)
		lanes.POST("/resize", h.Resize)
		lanes.POST("/concurrency", h.UpdateConcurrency)
		lanes.POST("/pause", h.Pause)
		lanes.POST("/resume", h.Resume)
	}
}
