package repository

import (
	"context"
	"time"

	"stagecrawl/internal/models"
)

// Store is the pipeline's view of the relational store. The scheduler is
// the only caller of the CrawlSource write methods; RawSourceItem rows are
// insert-only.
type Store interface {
	// crawl sources
	ListDueSources(ctx context.Context, now time.Time, limit int) ([]models.CrawlSource, error)
	ListSources(ctx context.Context, activeOnly bool) ([]models.CrawlSource, error)
	GetSource(ctx context.Context, id uint64) (*models.CrawlSource, error)
	SaveSource(ctx context.Context, src *models.CrawlSource) error

	// crawl runs
	InsertCrawlRun(ctx context.Context, run *models.CrawlRun) error
	FinalizeCrawlRun(ctx context.Context, run *models.CrawlRun) error
	ListCrawlRuns(ctx context.Context, limit int) ([]models.CrawlRun, error)

	// audit trail
	InsertRawSourceItem(ctx context.Context, item *models.RawSourceItem) error

	// change suggestions
	InsertSuggestion(ctx context.Context, s *models.ChangeSuggestion) error
	GetSuggestion(ctx context.Context, id uint64) (*models.ChangeSuggestion, error)
	ListSuggestions(ctx context.Context, params ListSuggestionsParams) ([]models.ChangeSuggestion, error)
	SaveSuggestion(ctx context.Context, s *models.ChangeSuggestion) error
	HasPendingSuggestionForTarget(ctx context.Context, targetEventID uint64) (bool, error)

	// canonical events
	GetEvent(ctx context.Context, id uint64) (*models.Event, error)
	FindEventBySourceURL(ctx context.Context, url string) (*models.Event, error)
	FindEventByTitleAndDate(ctx context.Context, title string, start *time.Time) (*models.Event, error)
	UpsertEvent(ctx context.Context, ev *models.Event) error

	// list-crawl dedupe; reports whether the URL was seen for the first time
	MarkURLSeen(ctx context.Context, hash, url string, now time.Time) (bool, error)
}

type ListSuggestionsParams struct {
	Status     *models.SuggestionStatus
	SourceSite *models.Site
	Limit      int
	Offset     int
}
