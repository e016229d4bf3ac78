package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skillforge/pipeline/common"
	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/dto"
	"github.com/skillforge/pipeline/internal/queue"
	"github.com/skillforge/pipeline/middleware"
)

type PipelineHandler struct {
	queue queue.QueueInterface
}

func NewPipelineHandler(q queue.QueueInterface) *PipelineHandler {
	return &PipelineHandler{queue: q}
}

var _ PipelineHandlerInterface = (*PipelineHandler)(nil)

// Completion accepts a course completion event and enqueues the
// certificate job. The dedup key on the enrollment ID coalesces repeated
// deliveries of the same event, so posting twice returns the same job.
// Returns HTTP 202 with the job ID.
func (h *PipelineHandler) Completion(c *gin.Context) {
	var req dto.CompletionEventDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	payload, err := json.Marshal(dto.IssueCertificatePayload{
		EnrollmentID: req.EnrollmentID,
		UserID:       req.UserID,
		CourseID:     req.CourseID,
	})
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	job, err := h.queue.Enqueue(c.Request.Context(), config.KindCertificate, payload,
		queue.WithDedupKey("certificate:"+req.EnrollmentID))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusAccepted, dto.JobAcceptedDTO{
		JobID: job.ID,
		State: job.State,
	})
}

// GetJob returns the operational view of a job by its ID.
func (h *PipelineHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "Invalid ID"})
		return
	}

	resp, err := h.queue.Status(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, common.APIError{Message: "Job not found"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListDead returns dead-lettered jobs, optionally filtered by kind via
// the kind query parameter. Served on /dead-jobs because the gin route
// tree cannot mix a static segment with the :id wildcard under /jobs.
func (h *PipelineHandler) ListDead(c *gin.Context) {
	kind := c.Query("kind")
	if kind != "" && !slices.Contains(config.AllowedKinds, config.JobKind(kind)) {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "unknown job kind"})
		return
	}

	jobs, err := h.queue.ListDead(c.Request.Context(), kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.APIError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Replay requeues a dead job with a fresh attempt budget and returns
// HTTP 204 on success.
func (h *PipelineHandler) Replay(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	if err := h.queue.Replay(c.Request.Context(), id); err != nil {
		c.Error(common.Errf(http.StatusConflict, "replay failed: %v", err))
		return
	}

	c.Status(http.StatusNoContent)
}

// Register wires the pipeline routes onto the router group.
func (h *PipelineHandler) Register(r gin.IRouter) {
	r.POST("/completions", h.Completion)
	r.GET("/jobs/:id", h.GetJob)
	r.GET("/dead-jobs", h.ListDead)
	r.POST("/jobs/:id/replay", h.Replay)
}
