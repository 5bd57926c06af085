package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagecrawl/internal/pipeline"
	"stagecrawl/internal/scheduler"
)

// ImportHandler exposes single-URL import and manual batch crawls.
type ImportHandler struct {
	Pipeline  *pipeline.Pipeline
	Scheduler *scheduler.Scheduler
	Logger    *zap.Logger
}

func (h *ImportHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.POST("/import", h.importURL)
	group.POST("/crawl", h.crawlBatch)
}

type importRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *ImportHandler) importURL(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, pipeline.CodeInvalidURL, "body must contain a url field")
		return
	}
	res := h.Pipeline.ImportURL(c.Request.Context(), strings.TrimSpace(req.URL))
	if !res.Success {
		status := http.StatusUnprocessableEntity
		if res.PublicCode == pipeline.CodeInvalidURL {
			status = http.StatusBadRequest
		}
		Fail(c, status, res.PublicCode, res.ErrorMessage)
		return
	}
	Ok(c, res)
}

type crawlRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

func (h *ImportHandler) crawlBatch(c *gin.Context) {
	var req crawlRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		Fail(c, http.StatusBadRequest, "BAD_REQUEST", "body must contain a non-empty urls array")
		return
	}
	run, err := h.Scheduler.CrawlBatch(c.Request.Context(), "manual", nil, req.URLs)
	if err != nil {
		h.Logger.Error("manual batch failed", zap.Error(err))
		Fail(c, http.StatusInternalServerError, "BATCH_FAILED", err.Error())
		return
	}
	Ok(c, run)
}
