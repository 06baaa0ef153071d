package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/newstagger/internal/api/middleware"
	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/repository"
)

// RowReader reads persisted result rows. *repository.ResultRepository implements it.
type RowReader interface {
	ListRows(ctx context.Context, f repository.RowFilter) ([]domain.NewsTag, int64, error)
}

// RowHandler handles result row endpoints.
type RowHandler struct {
	rows RowReader
}

// NewRowHandler creates a new row handler.
func NewRowHandler(rows RowReader) *RowHandler {
	return &RowHandler{rows: rows}
}

// RowListResponse is the body of GET /api/v1/rows.
type RowListResponse struct {
	Rows   []domain.NewsTag `json:"rows"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// ListRows handles GET /api/v1/rows?date=YYYYMMDD&status=&limit=&offset=.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *RowHandler) ListRows(c *gin.Context) {
	limit, offset, err := parsePaging(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date := c.Query("date")
	if date != "" {
		if _, err := time.Parse(domain.SnapDateLayout, date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYYMMDD"})
			return
		}
	}

	status := domain.RowStatus(c.Query("status"))
	switch status {
	case "", domain.RowStatusSuccess, domain.RowStatusPartialFailure, domain.RowStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status: " + string(status)})
		return
	}

	rows, total, err := h.rows.ListRows(c.Request.Context(), repository.RowFilter{
		SnapDate: date,
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list result rows")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rows"})
		return
	}
	if rows == nil {
		rows = []domain.NewsTag{}
	}

	c.JSON(http.StatusOK, RowListResponse{Rows: rows, Total: total, Limit: limit, Offset: offset})
}
