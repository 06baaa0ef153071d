package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/logger"
	"github.com/timmy/newstagger/internal/service"
)

// BatchRunner runs one batch. *service.BatchService implements it.
type BatchRunner interface {
	Run(ctx context.Context, today time.Time) (*service.BatchReport, error)
}

// AdminHandler triggers batch runs and reports their progress.
type AdminHandler struct {
	runner BatchRunner
	loc    *time.Location
	now    func() time.Time

	// Batch run state
	mu            sync.RWMutex
	isRunning     bool
	lastJob       *domain.BatchJob
	lastRunTime   time.Time
	lastRunStatus string

	// Runs derive from baseCtx so Shutdown can stop their dispatch.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - runner: batch service.
//   - loc: location used to interpret requested dates; nil means local time.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(runner BatchRunner, loc *time.Location) *AdminHandler {
	if loc == nil {
		loc = time.Local
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &AdminHandler{runner: runner, loc: loc, now: time.Now, baseCtx: baseCtx, cancel: cancel}
}

// BatchRequest is the body of POST /api/v1/admin/batch. Date is the
// reference day (YYYYMMDD); the window ends the day before. Empty means today.
type BatchRequest struct {
	Date string `json:"date"`
}

// BatchStatusResponse represents the batch run status.
type BatchStatusResponse struct {
	IsRunning     bool             `json:"is_running"`
	LastRunTime   string           `json:"last_run_time,omitempty"`
	LastRunStatus string           `json:"last_run_status,omitempty"`
	LastJob       *domain.BatchJob `json:"last_job,omitempty"`
}

// TriggerBatch handles POST /api/v1/admin/batch. The run continues in the
// background after the response is written.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AdminHandler) TriggerBatch(c *gin.Context) {
	ctx := c.Request.Context()

	var req BatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.CtxWarn(ctx, "Invalid batch request: client_ip=%s, error=%v", c.ClientIP(), err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	today := h.now().In(h.loc)
	if req.Date != "" {
		d, err := time.ParseInLocation(domain.SnapDateLayout, req.Date, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYYMMDD"})
			return
		}
		today = d
	}

	h.mu.Lock()
	if h.baseCtx.Err() != nil {
		h.mu.Unlock()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is shutting down"})
		return
	}
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Batch request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "A batch is already running"})
		return
	}
	h.isRunning = true
	h.wg.Add(1)
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting batch: date=%s, client_ip=%s", today.Format(domain.SnapDateLayout), c.ClientIP())

	// The run outlives the request; it keeps the request's logger fields and
	// is canceled by Shutdown.
	runCtx := logger.FromContext(ctx).WithContext(h.baseCtx)
	go func() {
		defer h.wg.Done()
		report, err := h.runner.Run(runCtx, today)

		h.mu.Lock()
		defer h.mu.Unlock()
		h.isRunning = false
		h.lastRunTime = h.now()
		if err != nil {
			h.lastRunStatus = "failed: " + err.Error()
			h.lastJob = nil
			return
		}
		h.lastRunStatus = "success"
		h.lastJob = report.Job
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Batch started",
		"date":    today.Format(domain.SnapDateLayout),
	})
}

// GetBatchStatus returns the current batch run status.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AdminHandler) GetBatchStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := BatchStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		LastJob:       h.lastJob,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// Shutdown cancels running batches. They stop dispatching new records and
// still export the rows they have; call Wait to block until they return.
// Later trigger requests are rejected.
func (h *AdminHandler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel()
}

// Wait blocks until background runs started by this handler return.
func (h *AdminHandler) Wait() {
	h.wg.Wait()
}
