package gormrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stagecrawl/internal/models"
	"stagecrawl/internal/repository"
)

// Repository implements repository.Store on a gorm connection.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ repository.Store = (*Repository)(nil)

func (r *Repository) ListDueSources(ctx context.Context, now time.Time, limit int) ([]models.CrawlSource, error) {
	var sources []models.CrawlSource
	q := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("next_crawl_at IS NULL OR next_crawl_at <= ?", now).
		Order("priority DESC, next_crawl_at ASC NULLS FIRST")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *Repository) ListSources(ctx context.Context, activeOnly bool) ([]models.CrawlSource, error) {
	var sources []models.CrawlSource
	q := r.db.WithContext(ctx).Order("priority DESC, id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *Repository) GetSource(ctx context.Context, id uint64) (*models.CrawlSource, error) {
	var src models.CrawlSource
	if err := r.db.WithContext(ctx).First(&src, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &src, nil
}

func (r *Repository) SaveSource(ctx context.Context, src *models.CrawlSource) error {
	return r.db.WithContext(ctx).Save(src).Error
}

func (r *Repository) InsertCrawlRun(ctx context.Context, run *models.CrawlRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *Repository) FinalizeCrawlRun(ctx context.Context, run *models.CrawlRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *Repository) ListCrawlRuns(ctx context.Context, limit int) ([]models.CrawlRun, error) {
	var runs []models.CrawlRun
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *Repository) InsertRawSourceItem(ctx context.Context, item *models.RawSourceItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) InsertSuggestion(ctx context.Context, s *models.ChangeSuggestion) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repository) GetSuggestion(ctx context.Context, id uint64) (*models.ChangeSuggestion, error) {
	var s models.ChangeSuggestion
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) ListSuggestions(ctx context.Context, params repository.ListSuggestionsParams) ([]models.ChangeSuggestion, error) {
	var out []models.ChangeSuggestion
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	}
	if params.SourceSite != nil {
		q = q.Where("source_site = ?", *params.SourceSite)
	}
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	if params.Offset > 0 {
		q = q.Offset(params.Offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) SaveSuggestion(ctx context.Context, s *models.ChangeSuggestion) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *Repository) HasPendingSuggestionForTarget(ctx context.Context, targetEventID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChangeSuggestion{}).
		Where("target_event_id = ? AND status = ?", targetEventID, models.SuggestionPending).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) GetEvent(ctx context.Context, id uint64) (*models.Event, error) {
	var ev models.Event
	if err := r.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

func (r *Repository) FindEventBySourceURL(ctx context.Context, url string) (*models.Event, error) {
	var ev models.Event
	err := r.db.WithContext(ctx).Where("source_url = ?", url).First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

// FindEventByTitleAndDate matches an exact title on the same calendar day,
// the fallback when the source URL has never been seen.
func (r *Repository) FindEventByTitleAndDate(ctx context.Context, title string, start *time.Time) (*models.Event, error) {
	var ev models.Event
	q := r.db.WithContext(ctx).Where("title = ?", title)
	if start != nil {
		dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		q = q.Where("start_at >= ? AND start_at < ?", dayStart, dayStart.Add(24*time.Hour))
	} else {
		q = q.Where("start_at IS NULL")
	}
	err := q.First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

func (r *Repository) UpsertEvent(ctx context.Context, ev *models.Event) error {
	return r.db.WithContext(ctx).Save(ev).Error
}

func (r *Repository) MarkURLSeen(ctx context.Context, hash, url string, now time.Time) (bool, error) {
	row := models.SeenURL{URLHash: hash, URL: url, FirstSeenAt: now, LastSeenAt: now}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url_hash"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	err := r.db.WithContext(ctx).Model(&models.SeenURL{}).
		Where("url_hash = ?", hash).
		Update("last_seen_at", now).Error
	return false, err
}
