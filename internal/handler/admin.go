package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stagecrawl/internal/listcrawler"
	"stagecrawl/internal/repository"
	"stagecrawl/internal/scheduler"
)

// AdminHandler serves the operational endpoints plus health and
// Prometheus metrics.
type AdminHandler struct {
	Store     repository.Store
	Scheduler *scheduler.Scheduler
	Lister    *listcrawler.Crawler
}

func (h *AdminHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	group := r.Group("/api/v1")
	group.GET("/sources", h.listSources)
	group.GET("/runs", h.listRuns)
	group.POST("/crawl/run", h.triggerSweep)
	group.POST("/discover", h.discover)
}

// triggerSweep runs the scheduled-crawl sweep on demand, same code path
// as the cron tick.
func (h *AdminHandler) triggerSweep(c *gin.Context) {
	if err := h.Scheduler.ProcessScheduledCrawls(c.Request.Context()); err != nil {
		Fail(c, http.StatusInternalServerError, "SWEEP_FAILED", err.Error())
		return
	}
	Ok(c, gin.H{"status": "completed"})
}

// discover sweeps every active list source and returns the detail URLs
// not seen before, without crawling them. Useful for previewing what the
// next scheduled run would pick up.
func (h *AdminHandler) discover(c *gin.Context) {
	sources, err := h.Store.ListSources(c.Request.Context(), true)
	if err != nil {
		Fail(c, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	urls := h.Lister.DiscoverAll(c.Request.Context(), sources)
	Ok(c, gin.H{"count": len(urls), "urls": urls})
}

func (h *AdminHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) listSources(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "false") == "true"
	out, err := h.Store.ListSources(c.Request.Context(), activeOnly)
	if err != nil {
		Fail(c, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	Ok(c, out)
}

func (h *AdminHandler) listRuns(c *gin.Context) {
	limit := 50
	if n, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && n > 0 {
		limit = n
	}
	out, err := h.Store.ListCrawlRuns(c.Request.Context(), limit)
	if err != nil {
		Fail(c, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	Ok(c, out)
}
