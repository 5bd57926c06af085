package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"stagecrawl/internal/approval"
	"stagecrawl/internal/config"
	"stagecrawl/internal/extractor"
	"stagecrawl/internal/fetcher"
	"stagecrawl/internal/listcrawler"
	"stagecrawl/internal/models"
	"stagecrawl/internal/pipeline"
	"stagecrawl/internal/repository/memstore"
	"stagecrawl/internal/sitedetect"
)

const detailPage = `<!DOCTYPE html>
<html><head>
<title>아이유 단독 콘서트</title>
<script type="application/ld+json">
{"@type": "MusicEvent", "name": "아이유 단독 콘서트",
 "startDate": "2025-03-01T19:00:00",
 "location": {"name": "블루스퀘어"}}
</script>
</head><body>상세</body></html>`

func newScheduler(store *memstore.Store, fetchTimeout time.Duration) *Scheduler {
	det := sitedetect.New()
	fetch := fetcher.New(fetcher.Options{Timeout: fetchTimeout})
	pipe := pipeline.New(
		fetch,
		det,
		extractor.DefaultRegistry(det),
		approval.NewEngine([]string{"price", "description"}),
		store,
		zap.NewNop(),
	)
	lister := listcrawler.New(fetch, store, 50, zap.NewNop())
	return New(store, pipe, lister, config.CrawlConfig{
		Concurrency:         2,
		BackoffFactor:       0.5,
		DeactivateThreshold: 3,
	}, zap.NewNop())
}

func TestCrawlBatchSurvivesFailingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(2 * time.Second)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, detailPage)
	}))
	defer srv.Close()

	store := memstore.New()
	s := newScheduler(store, 300*time.Millisecond)

	run, err := s.CrawlBatch(context.Background(), "manual", nil,
		[]string{srv.URL + "/ok", srv.URL + "/slow"})
	if err != nil {
		t.Fatal(err)
	}
	if run.URLsProcessed != 2 {
		t.Fatalf("processed: %d", run.URLsProcessed)
	}
	if run.Errors != 1 {
		t.Fatalf("errors: %d", run.Errors)
	}
	if run.Status != models.RunCompleted {
		t.Fatalf("status: %s", run.Status)
	}
	if run.PendingReview != 1 || run.NewEvents != 1 {
		t.Fatalf("counts: %+v", run)
	}
	if len(run.ErrorDetails) == 0 {
		t.Fatal("error details must be recorded")
	}
}

func TestCrawlBatchAllFailuresMarksRunFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newScheduler(memstore.New(), time.Second)
	run, err := s.CrawlBatch(context.Background(), "manual", nil, []string{srv.URL + "/a", srv.URL + "/b"})
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.RunFailed {
		t.Fatalf("status: %s", run.Status)
	}
}

func TestNextInterval(t *testing.T) {
	tests := []struct {
		hours    int
		failures int
		want     time.Duration
	}{
		{24, 0, 24 * time.Hour},
		{24, 1, 36 * time.Hour},
		{24, 2, 48 * time.Hour},
		{0, 0, 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := NextInterval(tt.hours, tt.failures, 0.5); got != tt.want {
			t.Fatalf("NextInterval(%d, %d) = %s, want %s", tt.hours, tt.failures, got, tt.want)
		}
	}
}

func TestRecordOutcomeBackoffAndDeactivation(t *testing.T) {
	store := memstore.New()
	s := newScheduler(store, time.Second)

	src := &models.CrawlSource{IsActive: true, CrawlIntervalHours: 24}
	if err := store.SaveSource(context.Background(), src); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		s.recordOutcome(context.Background(), src, false, "boom")
		if src.ConsecutiveFailures != i {
			t.Fatalf("failures after %d: %d", i, src.ConsecutiveFailures)
		}
	}
	if src.IsActive {
		t.Fatal("source must deactivate at the threshold")
	}
	if src.NextCrawlAt == nil {
		t.Fatal("next crawl must always be scheduled")
	}

	// a success resets the streak
	src.IsActive = true
	s.recordOutcome(context.Background(), src, true, "")
	if src.ConsecutiveFailures != 0 || src.LastError != "" {
		t.Fatalf("success must reset failure state: %+v", src)
	}
}

func TestProcessScheduledCrawls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, detailPage)
	}))
	defer srv.Close()

	store := memstore.New()
	if err := store.SaveSource(context.Background(), &models.CrawlSource{
		URL:                srv.URL + "/detail",
		SourceType:         models.SourceTypeDetail,
		IsActive:           true,
		CrawlIntervalHours: 24,
	}); err != nil {
		t.Fatal(err)
	}

	s := newScheduler(store, time.Second)
	if err := s.ProcessScheduledCrawls(context.Background()); err != nil {
		t.Fatal(err)
	}
	if runs := store.Runs(); len(runs) != 1 {
		t.Fatalf("runs: %d", len(runs))
	}
	src := store.Sources()[0]
	if src.SuccessCount != 1 {
		t.Fatalf("source counters not updated: %+v", src)
	}
	if src.NextCrawlAt == nil || !src.NextCrawlAt.After(time.Now()) {
		t.Fatalf("next crawl not scheduled: %v", src.NextCrawlAt)
	}
}

func TestProcessScheduledCrawlsListSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
<a href="/detail/1">공연 1</a>
<a href="/detail/2">공연 2</a>
</body></html>`)
	})
	mux.HandleFunc("/detail/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, detailPage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := memstore.New()
	if err := store.SaveSource(context.Background(), &models.CrawlSource{
		URL:                srv.URL + "/list",
		SourceType:         models.SourceTypeList,
		IsActive:           true,
		CrawlIntervalHours: 24,
		ListConfig:         []byte(`{"hrefPattern":"/detail/\\d+"}`),
	}); err != nil {
		t.Fatal(err)
	}

	s := newScheduler(store, time.Second)
	if err := s.ProcessScheduledCrawls(context.Background()); err != nil {
		t.Fatal(err)
	}
	runs := store.Runs()
	if len(runs) != 1 || runs[0].URLsDiscovered != 2 {
		t.Fatalf("runs: %+v", runs)
	}
	if len(store.Suggestions()) != 2 {
		t.Fatalf("suggestions: %d", len(store.Suggestions()))
	}

	// second sweep: the source is not due, and the urls are deduped anyway
	src := store.Sources()[0]
	src.NextCrawlAt = nil
	if err := store.SaveSource(context.Background(), &src); err != nil {
		t.Fatal(err)
	}
	if err := s.ProcessScheduledCrawls(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.Suggestions()) != 2 {
		t.Fatalf("dedupe failed: %d suggestions", len(store.Suggestions()))
	}
}

func TestProcessApprovedSuggestions(t *testing.T) {
	store := memstore.New()
	if err := store.SaveSuggestion(context.Background(), &models.ChangeSuggestion{
		ID:             10,
		SuggestionType: models.SuggestionNew,
		SuggestedData:  []byte(`{"title":"새 공연"}`),
		Status:         models.SuggestionApproved,
		SourceSite:     models.SiteYes24,
		SourceURL:      "http://ticket.yes24.com/Perf/1",
	}); err != nil {
		t.Fatal(err)
	}

	s := newScheduler(store, time.Second)
	if err := s.ProcessApprovedSuggestions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.Events()) != 1 {
		t.Fatalf("events: %d", len(store.Events()))
	}
	if got := store.Suggestions()[0]; got.Status != models.SuggestionApplied {
		t.Fatalf("status: %s", got.Status)
	}
}
