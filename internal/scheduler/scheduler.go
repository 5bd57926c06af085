package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stagecrawl/internal/config"
	"stagecrawl/internal/listcrawler"
	"stagecrawl/internal/metrics"
	"stagecrawl/internal/models"
	"stagecrawl/internal/pipeline"
	"stagecrawl/internal/repository"
)

// Scheduler drives periodic crawling. It is the single writer of
// CrawlSource schedule state; batches fan out over URLs, the sources
// themselves are processed one at a time.
type Scheduler struct {
	store  repository.Store
	pipe   *pipeline.Pipeline
	lister *listcrawler.Crawler
	cfg    config.CrawlConfig
	log    *zap.Logger
}

func New(store repository.Store, pipe *pipeline.Pipeline, lister *listcrawler.Crawler, cfg config.CrawlConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &Scheduler{store: store, pipe: pipe, lister: lister, cfg: cfg, log: log}
}

// ProcessScheduledCrawls runs every due source once, highest priority
// first. One bad source never blocks the rest of the sweep.
func (s *Scheduler) ProcessScheduledCrawls(ctx context.Context) error {
	now := time.Now().UTC()
	sources, err := s.store.ListDueSources(ctx, now, 0)
	if err != nil {
		return err
	}
	s.log.Info("scheduled sweep", zap.Int("due", len(sources)))

	for i := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		src := &sources[i]
		if err := s.crawlSource(ctx, src); err != nil {
			s.log.Error("source crawl failed",
				zap.Uint64("source", src.ID),
				zap.String("url", src.URL),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) crawlSource(ctx context.Context, src *models.CrawlSource) error {
	var (
		urls []string
		err  error
	)
	switch src.SourceType {
	case models.SourceTypeList:
		urls, err = s.lister.Discover(ctx, src)
	default:
		urls = []string{src.URL}
	}
	if err != nil {
		s.recordOutcome(ctx, src, false, err.Error())
		return err
	}

	run, runErr := s.CrawlBatch(ctx, "scheduled", &src.ID, urls)
	failed := runErr != nil || (len(urls) > 0 && run != nil && run.Errors == run.URLsProcessed)
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	} else if failed {
		msg = "every url in the batch failed"
	}
	s.recordOutcome(ctx, src, !failed, msg)
	return runErr
}

// recordOutcome updates the source's counters and schedules the next
// crawl. Consecutive failures stretch the interval; past the threshold
// the source is deactivated until an operator intervenes.
func (s *Scheduler) recordOutcome(ctx context.Context, src *models.CrawlSource, ok bool, errMsg string) {
	now := time.Now().UTC()
	if ok {
		src.SuccessCount++
		src.ConsecutiveFailures = 0
		src.LastError = ""
		src.LastErrorAt = nil
	} else {
		src.FailureCount++
		src.ConsecutiveFailures++
		src.LastError = errMsg
		src.LastErrorAt = &now
		if src.ConsecutiveFailures >= s.cfg.DeactivateThreshold {
			src.IsActive = false
			s.log.Warn("source deactivated",
				zap.Uint64("source", src.ID),
				zap.Int("consecutive_failures", src.ConsecutiveFailures))
		}
	}
	next := now.Add(NextInterval(src.CrawlIntervalHours, src.ConsecutiveFailures, s.cfg.BackoffFactor))
	src.NextCrawlAt = &next

	if err := s.store.SaveSource(ctx, src); err != nil {
		s.log.Error("source save failed", zap.Uint64("source", src.ID), zap.Error(err))
	}
}

// NextInterval stretches the base interval linearly with consecutive
// failures: base * (1 + factor * failures).
func NextInterval(baseHours, consecutiveFailures int, factor float64) time.Duration {
	base := time.Duration(baseHours) * time.Hour
	if baseHours <= 0 {
		base = 24 * time.Hour
	}
	scale := 1 + factor*float64(consecutiveFailures)
	if scale < 1 {
		scale = 1
	}
	return time.Duration(float64(base) * scale)
}

type batchErr struct {
	URL   string `json:"url"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// CrawlBatch imports a set of URLs with bounded concurrency and records
// the run. A failing URL counts as an error and the batch moves on.
func (s *Scheduler) CrawlBatch(ctx context.Context, runType string, sourceID *uint64, urls []string) (*models.CrawlRun, error) {
	started := time.Now().UTC()
	run := &models.CrawlRun{
		RunID:          uuid.NewString(),
		RunType:        runType,
		SourceID:       sourceID,
		StartedAt:      started,
		Status:         models.RunRunning,
		URLsDiscovered: len(urls),
	}
	if s.store != nil {
		if err := s.store.InsertCrawlRun(ctx, run); err != nil {
			return nil, err
		}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		details []batchErr
	)
	sem := make(chan struct{}, s.cfg.Concurrency)

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(u string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := s.pipe.ImportURL(ctx, u)

			mu.Lock()
			defer mu.Unlock()
			run.URLsProcessed++
			if !res.Success {
				run.Errors++
				details = append(details, batchErr{URL: u, Code: res.PublicCode, Error: res.ErrorMessage})
				return
			}
			switch {
			case res.Skipped:
				run.Skipped++
			case res.SuggestionStatus == models.SuggestionApplied:
				run.UpdatedEvents++
				run.AutoApproved++
			case res.SuggestionID != nil:
				run.PendingReview++
				if res.MatchedEventID == nil {
					run.NewEvents++
				} else {
					run.UpdatedEvents++
				}
			}
		}(u)
	}
	wg.Wait()

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	run.DurationMs = completed.Sub(started).Milliseconds()
	run.Status = models.RunCompleted
	if len(urls) > 0 && run.Errors == run.URLsProcessed {
		run.Status = models.RunFailed
	}
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			run.ErrorDetails = b
		}
	}
	if s.store != nil {
		if err := s.store.FinalizeCrawlRun(ctx, run); err != nil {
			s.log.Error("run finalize failed", zap.String("run", run.RunID), zap.Error(err))
		}
	}
	metrics.BatchRuns.WithLabelValues(runType, string(run.Status)).Inc()
	s.log.Info("batch finished",
		zap.String("run", run.RunID),
		zap.String("type", runType),
		zap.Int("processed", run.URLsProcessed),
		zap.Int("errors", run.Errors),
		zap.Int64("duration_ms", run.DurationMs))
	return run, nil
}

// ProcessApprovedSuggestions applies suggestions a reviewer approved but
// that were never written out, e.g. after a crash between the two steps.
func (s *Scheduler) ProcessApprovedSuggestions(ctx context.Context) error {
	status := models.SuggestionApproved
	pendingApply, err := s.store.ListSuggestions(ctx, repository.ListSuggestionsParams{Status: &status})
	if err != nil {
		return err
	}
	for i := range pendingApply {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sg := &pendingApply[i]
		if err := s.pipe.ApplySuggestion(ctx, sg); err != nil {
			s.log.Error("apply suggestion failed", zap.Uint64("suggestion", sg.ID), zap.Error(err))
		}
	}
	return nil
}
