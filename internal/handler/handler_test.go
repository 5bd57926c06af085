package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagecrawl/internal/approval"
	"stagecrawl/internal/config"
	"stagecrawl/internal/extractor"
	"stagecrawl/internal/fetcher"
	"stagecrawl/internal/listcrawler"
	"stagecrawl/internal/models"
	"stagecrawl/internal/pipeline"
	"stagecrawl/internal/repository/memstore"
	"stagecrawl/internal/scheduler"
	"stagecrawl/internal/sitedetect"
)

const eventPage = `<!DOCTYPE html>
<html><head>
<title>아이유 단독 콘서트</title>
<script type="application/ld+json">
{"@type": "MusicEvent", "name": "아이유 단독 콘서트",
 "startDate": "2025-03-01T19:00:00",
 "location": {"name": "블루스퀘어"}}
</script>
</head><body>상세</body></html>`

func newRouter(store *memstore.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	det := sitedetect.New()
	fetch := fetcher.New(fetcher.Options{Timeout: 2 * time.Second})
	pipe := pipeline.New(
		fetch,
		det,
		extractor.DefaultRegistry(det),
		approval.NewEngine([]string{"price", "description"}),
		store,
		zap.NewNop(),
	)
	lister := listcrawler.New(fetch, store, 50, zap.NewNop())
	sched := scheduler.New(store, pipe, lister, config.CrawlConfig{Concurrency: 2}, zap.NewNop())

	r := gin.New()
	(&ImportHandler{Pipeline: pipe, Scheduler: sched, Logger: zap.NewNop()}).Register(r)
	(&ReviewHandler{Store: store, Pipeline: pipe, Logger: zap.NewNop()}).Register(r)
	(&AdminHandler{Store: store, Scheduler: sched, Lister: lister}).Register(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestImportEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, eventPage)
	}))
	defer srv.Close()

	store := memstore.New()
	r := newRouter(store)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/import", gin.H{"url": srv.URL + "/event"})
	if w.Code != http.StatusOK || resp.Code != 0 {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if len(store.Suggestions()) != 1 {
		t.Fatalf("suggestions: %d", len(store.Suggestions()))
	}
}

func TestImportEndpointInvalidURL(t *testing.T) {
	r := newRouter(memstore.New())
	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/import", gin.H{"url": "ftp://x"})
	if w.Code != http.StatusBadRequest || resp.Error != pipeline.CodeInvalidURL {
		t.Fatalf("status %d resp %+v", w.Code, resp)
	}
}

func TestImportEndpointFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := newRouter(memstore.New())
	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/import", gin.H{"url": srv.URL})
	if w.Code != http.StatusUnprocessableEntity || resp.Error != pipeline.CodeFetchFailed {
		t.Fatalf("status %d resp %+v", w.Code, resp)
	}
}

func seedPending(t *testing.T, store *memstore.Store) uint64 {
	t.Helper()
	s := &models.ChangeSuggestion{
		SuggestionType: models.SuggestionNew,
		SuggestedData:  []byte(`{"title":"새 공연"}`),
		Confidence:     models.ConfidenceHigh,
		Status:         models.SuggestionPending,
		SourceSite:     models.SiteYes24,
		SourceURL:      "http://ticket.yes24.com/Perf/1",
	}
	if err := store.InsertSuggestion(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return s.ID
}

func TestApproveFlow(t *testing.T) {
	store := memstore.New()
	id := seedPending(t, store)
	r := newRouter(store)

	w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/suggestions/%d/approve", id),
		gin.H{"reviewer": "admin", "notes": "looks right"})
	if w.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", w.Code, w.Body.String())
	}

	s, err := store.GetSuggestion(context.Background(), id)
	if err != nil || s == nil {
		t.Fatalf("load: %v %v", s, err)
	}
	if s.Status != models.SuggestionApplied {
		t.Fatalf("status: %s", s.Status)
	}
	if s.ReviewedBy != "admin" {
		t.Fatalf("reviewer: %s", s.ReviewedBy)
	}
	if len(store.Events()) != 1 {
		t.Fatalf("events: %d", len(store.Events()))
	}

	// terminal: approving again conflicts
	w, resp := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/suggestions/%d/approve", id),
		gin.H{"reviewer": "admin"})
	if w.Code != http.StatusConflict || resp.Error != "ILLEGAL_TRANSITION" {
		t.Fatalf("re-approve: %d %+v", w.Code, resp)
	}
}

func TestRejectFlow(t *testing.T) {
	store := memstore.New()
	id := seedPending(t, store)
	r := newRouter(store)

	w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/suggestions/%d/reject", id),
		gin.H{"reviewer": "admin", "notes": "duplicate"})
	if w.Code != http.StatusOK {
		t.Fatalf("reject: %d %s", w.Code, w.Body.String())
	}
	s, _ := store.GetSuggestion(context.Background(), id)
	if s.Status != models.SuggestionRejected {
		t.Fatalf("status: %s", s.Status)
	}
	if len(store.Events()) != 0 {
		t.Fatal("rejected suggestions never touch events")
	}
}

func TestListSuggestionsFilter(t *testing.T) {
	store := memstore.New()
	seedPending(t, store)
	r := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/suggestions?status=pending", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/suggestions?status=rejected", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data != nil {
		if arr, ok := resp.Data.([]any); ok && len(arr) != 0 {
			t.Fatalf("rejected filter: %v", resp.Data)
		}
	}
}

func TestSuggestionNotFound(t *testing.T) {
	r := newRouter(memstore.New())
	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/suggestions/99/approve", gin.H{"reviewer": "x"})
	if w.Code != http.StatusNotFound || resp.Error != "NOT_FOUND" {
		t.Fatalf("%d %+v", w.Code, resp)
	}
}

func TestHealth(t *testing.T) {
	r := newRouter(memstore.New())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
}

func TestDiscoverEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
<a href="/Perf/51001">공연 1</a>
<a href="/Perf/51002">공연 2</a>
<a href="/Notice/1">공지</a>
</body></html>`)
	}))
	defer srv.Close()

	store := memstore.New()
	src := &models.CrawlSource{
		URL:        srv.URL + "/list",
		SourceSite: models.SiteYes24,
		SourceType: models.SourceTypeList,
		IsActive:   true,
		ListConfig: []byte(`{"hrefPattern": "/Perf/"}`),
	}
	if err := store.SaveSource(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	r := newRouter(store)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/discover", nil)
	if w.Code != http.StatusOK || resp.Code != 0 {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data: %T", resp.Data)
	}
	if n, _ := data["count"].(float64); n != 2 {
		t.Fatalf("count: %v", data["count"])
	}

	// the same links are seen now, a second sweep finds nothing new
	w, resp = doJSON(t, r, http.MethodPost, "/api/v1/discover", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second sweep: %d", w.Code)
	}
	data, _ = resp.Data.(map[string]any)
	if n, _ := data["count"].(float64); n != 0 {
		t.Fatalf("second sweep count: %v", data["count"])
	}
}
