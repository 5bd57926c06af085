// Package memstore is an in-memory repository.Store used by tests and
// local development without a database. Not meant for production use.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"stagecrawl/internal/models"
	"stagecrawl/internal/repository"
)

type Store struct {
	mu          sync.Mutex
	sources     []models.CrawlSource
	runs        []models.CrawlRun
	rawItems    []models.RawSourceItem
	suggestions []models.ChangeSuggestion
	events      map[uint64]*models.Event
	seen        map[string]models.SeenURL
	nextID      uint64
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		events: map[uint64]*models.Event{},
		seen:   map[string]models.SeenURL{},
		nextID: 1,
	}
}

func (s *Store) ListDueSources(_ context.Context, now time.Time, limit int) ([]models.CrawlSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.CrawlSource
	for _, src := range s.sources {
		if !src.IsActive {
			continue
		}
		if src.NextCrawlAt != nil && src.NextCrawlAt.After(now) {
			continue
		}
		due = append(due, src)
	}
	// same contract as the SQL store: priority desc, never-crawled first,
	// then oldest next_crawl_at
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		a, b := due[i].NextCrawlAt, due[j].NextCrawlAt
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ListSources(_ context.Context, activeOnly bool) ([]models.CrawlSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CrawlSource
	for _, src := range s.sources {
		if activeOnly && !src.IsActive {
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

func (s *Store) GetSource(_ context.Context, id uint64) (*models.CrawlSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range s.sources {
		if src.ID == id {
			copied := src
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveSource(_ context.Context, src *models.CrawlSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src.ID == 0 {
		src.ID = s.nextID
		s.nextID++
	}
	for i := range s.sources {
		if s.sources[i].ID == src.ID {
			s.sources[i] = *src
			return nil
		}
	}
	s.sources = append(s.sources, *src)
	return nil
}

func (s *Store) InsertCrawlRun(_ context.Context, run *models.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = s.nextID
	s.nextID++
	s.runs = append(s.runs, *run)
	return nil
}

func (s *Store) FinalizeCrawlRun(_ context.Context, run *models.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = *run
		}
	}
	return nil
}

func (s *Store) ListCrawlRuns(_ context.Context, limit int) ([]models.CrawlRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.CrawlRun(nil), s.runs...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertRawSourceItem(_ context.Context, item *models.RawSourceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextID
	s.nextID++
	s.rawItems = append(s.rawItems, *item)
	return nil
}

func (s *Store) InsertSuggestion(_ context.Context, sg *models.ChangeSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg.ID = s.nextID
	s.nextID++
	s.suggestions = append(s.suggestions, *sg)
	return nil
}

func (s *Store) GetSuggestion(_ context.Context, id uint64) (*models.ChangeSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range s.suggestions {
		if sg.ID == id {
			copied := sg
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) ListSuggestions(_ context.Context, params repository.ListSuggestionsParams) ([]models.ChangeSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChangeSuggestion
	for _, sg := range s.suggestions {
		if params.Status != nil && sg.Status != *params.Status {
			continue
		}
		if params.SourceSite != nil && sg.SourceSite != *params.SourceSite {
			continue
		}
		out = append(out, sg)
	}
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return nil, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *Store) SaveSuggestion(_ context.Context, sg *models.ChangeSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.suggestions {
		if s.suggestions[i].ID == sg.ID {
			s.suggestions[i] = *sg
			return nil
		}
	}
	s.suggestions = append(s.suggestions, *sg)
	return nil
}

func (s *Store) HasPendingSuggestionForTarget(_ context.Context, targetEventID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range s.suggestions {
		if sg.TargetEventID != nil && *sg.TargetEventID == targetEventID && sg.Status == models.SuggestionPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetEvent(_ context.Context, id uint64) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.events[id]; ok {
		copied := *ev
		return &copied, nil
	}
	return nil, nil
}

func (s *Store) FindEventBySourceURL(_ context.Context, url string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.SourceURL == url {
			copied := *ev
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) FindEventByTitleAndDate(_ context.Context, title string, start *time.Time) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Title != title {
			continue
		}
		if start == nil || ev.StartAt == nil {
			if start == nil && ev.StartAt == nil {
				copied := *ev
				return &copied, nil
			}
			continue
		}
		if sameDay(*start, *ev.StartAt) {
			copied := *ev
			return &copied, nil
		}
	}
	return nil, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *Store) UpsertEvent(_ context.Context, ev *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == 0 {
		ev.ID = s.nextID
		s.nextID++
	}
	copied := *ev
	s.events[ev.ID] = &copied
	return nil
}

func (s *Store) MarkURLSeen(_ context.Context, hash, url string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.seen[hash]; ok {
		row.LastSeenAt = now
		s.seen[hash] = row
		return false, nil
	}
	s.seen[hash] = models.SeenURL{URLHash: hash, URL: url, FirstSeenAt: now, LastSeenAt: now}
	return true, nil
}

// snapshot accessors for tests

func (s *Store) RawItems() []models.RawSourceItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RawSourceItem(nil), s.rawItems...)
}

func (s *Store) Suggestions() []models.ChangeSuggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChangeSuggestion(nil), s.suggestions...)
}

func (s *Store) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, *ev)
	}
	return out
}

func (s *Store) Runs() []models.CrawlRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CrawlRun(nil), s.runs...)
}

func (s *Store) Sources() []models.CrawlSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CrawlSource(nil), s.sources...)
}
