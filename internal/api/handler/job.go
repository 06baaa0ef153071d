package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/newstagger/internal/api/middleware"
	"github.com/timmy/newstagger/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// JobReader reads batch job records. *repository.JobRepository implements it.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	List(ctx context.Context, limit, offset int) ([]domain.BatchJob, error)
}

// JobHandler handles batch job endpoints.
type JobHandler struct {
	jobs JobReader
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobs JobReader) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// JobListResponse is the body of GET /api/v1/jobs.
type JobListResponse struct {
	Jobs   []domain.BatchJob `json:"jobs"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ListJobs handles GET /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, offset, err := parsePaging(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), limit, offset)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list batch jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}
	if jobs == nil {
		jobs = []domain.BatchJob{}
	}

	c.JSON(http.StatusOK, JobListResponse{Jobs: jobs, Limit: limit, Offset: offset})
}

// GetJob handles GET /api/v1/jobs/:id.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID is required"})
		return
	}

	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).WithField("job_id", id).Error("Failed to load batch job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// parsePaging reads limit and offset query parameters.
func parsePaging(c *gin.Context) (int, int, error) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		return 0, 0, errors.New("limit must be a positive integer")
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, errors.New("offset must be a non-negative integer")
	}
	return limit, offset, nil
}
