package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagecrawl/internal/approval"
	"stagecrawl/internal/models"
	"stagecrawl/internal/pipeline"
	"stagecrawl/internal/repository"
)

// ReviewHandler is the human side of the approval workflow: list what is
// queued, approve or reject it.
type ReviewHandler struct {
	Store    repository.Store
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
}

func (h *ReviewHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/suggestions")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/approve", h.approve)
	group.POST("/:id/reject", h.reject)
}

func (h *ReviewHandler) list(c *gin.Context) {
	params := repository.ListSuggestionsParams{Limit: 50}
	if s := c.Query("status"); s != "" {
		status := models.SuggestionStatus(s)
		params.Status = &status
	}
	if s := c.Query("site"); s != "" {
		site := models.Site(s)
		params.SourceSite = &site
	}
	if n, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && n > 0 {
		params.Limit = n
	}
	if n, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && n >= 0 {
		params.Offset = n
	}
	out, err := h.Store.ListSuggestions(c.Request.Context(), params)
	if err != nil {
		Fail(c, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	Ok(c, out)
}

func (h *ReviewHandler) get(c *gin.Context) {
	s, ok := h.load(c)
	if !ok {
		return
	}
	Ok(c, s)
}

type reviewRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
	Notes    string `json:"notes"`
}

func (h *ReviewHandler) approve(c *gin.Context) {
	s, ok := h.load(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, "BAD_REQUEST", "body must contain a reviewer field")
		return
	}
	if err := approval.Approve(s, req.Reviewer, req.Notes, time.Now().UTC()); err != nil {
		h.transitionError(c, err)
		return
	}
	if err := h.Pipeline.ApplySuggestion(c.Request.Context(), s); err != nil {
		h.Logger.Error("apply after approve failed", zap.Uint64("suggestion", s.ID), zap.Error(err))
		// the approval itself still needs to be durable; the scheduler's
		// sweep picks the apply up later
		if saveErr := h.Store.SaveSuggestion(c.Request.Context(), s); saveErr != nil {
			Fail(c, http.StatusInternalServerError, "STORE_ERROR", saveErr.Error())
			return
		}
	}
	Ok(c, s)
}

func (h *ReviewHandler) reject(c *gin.Context) {
	s, ok := h.load(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, "BAD_REQUEST", "body must contain a reviewer field")
		return
	}
	if err := approval.Reject(s, req.Reviewer, req.Notes, time.Now().UTC()); err != nil {
		h.transitionError(c, err)
		return
	}
	if err := h.Store.SaveSuggestion(c.Request.Context(), s); err != nil {
		Fail(c, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	Ok(c, s)
}

func (h *ReviewHandler) load(c *gin.Context) (*models.ChangeSuggestion, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Fail(c, http.StatusBadRequest, "BAD_REQUEST", "suggestion id must be numeric")
		return nil, false
	}
	s, err := h.Store.GetSuggestion(c.Request.Context(), id)
	if err != nil {
		Fail(c, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return nil, false
	}
	if s == nil {
		Fail(c, http.StatusNotFound, "NOT_FOUND", "no such suggestion")
		return nil, false
	}
	return s, true
}

func (h *ReviewHandler) transitionError(c *gin.Context, err error) {
	if errors.Is(err, approval.ErrIllegalTransition) {
		Fail(c, http.StatusConflict, "ILLEGAL_TRANSITION", err.Error())
		return
	}
	Fail(c, http.StatusInternalServerError, "STORE_ERROR", err.Error())
}
