package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/newstagger/internal/api/middleware"
	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/export"
	"github.com/timmy/newstagger/internal/storage"
)

// ExportHandler serves uploaded CSV exports from object storage.
type ExportHandler struct {
	store  storage.ObjectStorage
	prefix string
}

// NewExportHandler creates a new export handler.
func NewExportHandler(store storage.ObjectStorage, prefix string) *ExportHandler {
	return &ExportHandler{store: store, prefix: prefix}
}

// Download handles GET /api/v1/exports/:date, streaming the table whose
// window ends on date (YYYYMMDD).
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes CSV or JSON error response).
func (h *ExportHandler) Download(c *gin.Context) {
	windowEnd, err := time.Parse(domain.SnapDateLayout, c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYYMMDD"})
		return
	}

	ctx := c.Request.Context()
	name := export.FileName(windowEnd)
	key := storage.ExportKey(h.prefix, windowEnd, name)

	ok, err := h.store.Exists(ctx, key)
	if err != nil {
		middleware.GetLogger(c).WithError(err).WithField("key", key).Error("Failed to check export")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Storage unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
		return
	}

	body, err := h.store.Download(ctx, key)
	if err != nil {
		middleware.GetLogger(c).WithError(err).WithField("key", key).Error("Failed to download export")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Storage unavailable"})
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, -1, storage.CSVContentType, body, map[string]string{
		"Content-Disposition": `attachment; filename="` + name + `"`,
	})
}
