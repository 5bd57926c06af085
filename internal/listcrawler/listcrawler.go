package listcrawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"stagecrawl/internal/fetcher"
	"stagecrawl/internal/models"
)

// ListConfig tells the crawler how to find detail links on one listing
// page. Stored per source as JSON.
type ListConfig struct {
	LinkSelector string `json:"linkSelector,omitempty"`
	HrefPattern  string `json:"hrefPattern,omitempty"`
	BaseURL      string `json:"baseUrl,omitempty"`
	MaxURLs      int    `json:"maxUrls,omitempty"`
}

// SeenStore is the dedupe slice of the repository: report whether a
// normalized URL is new.
type SeenStore interface {
	MarkURLSeen(ctx context.Context, hash, url string, now time.Time) (bool, error)
}

type Crawler struct {
	fetch      *fetcher.Fetcher
	store      SeenStore
	defaultMax int
	log        *zap.Logger
}

// New builds a list crawler. store may be nil, which disables cross-run
// dedupe (the CLI path has no database).
func New(fetch *fetcher.Fetcher, store SeenStore, defaultMax int, log *zap.Logger) *Crawler {
	if defaultMax <= 0 {
		defaultMax = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Crawler{fetch: fetch, store: store, defaultMax: defaultMax, log: log}
}

// Discover fetches one listing source and returns the detail URLs not seen
// before, in document order. A fetch failure returns the fetch error code
// in the error; it never panics the batch.
func (c *Crawler) Discover(ctx context.Context, src *models.CrawlSource) ([]string, error) {
	var cfg ListConfig
	if len(src.ListConfig) > 0 {
		if err := json.Unmarshal(src.ListConfig, &cfg); err != nil {
			return nil, fmt.Errorf("list config for source %d: %w", src.ID, err)
		}
	}

	res := c.fetch.Fetch(ctx, src.URL)
	if !res.Success {
		return nil, fmt.Errorf("fetch %s: %s: %s", src.URL, res.ErrorCode, res.ErrorMessage)
	}

	urls, err := ExtractDetailURLs(res.HTML, res.FinalURL, cfg, c.defaultMax)
	if err != nil {
		return nil, err
	}

	if c.store == nil {
		return urls, nil
	}
	now := time.Now().UTC()
	fresh := urls[:0]
	for _, u := range urls {
		first, err := c.store.MarkURLSeen(ctx, HashURL(u), u, now)
		if err != nil {
			return nil, err
		}
		if first {
			fresh = append(fresh, u)
		}
	}
	c.log.Debug("list discovery",
		zap.String("source", src.URL),
		zap.Int("found", len(urls)),
		zap.Int("new", len(fresh)))
	return fresh, nil
}

// DiscoverAll sweeps the given list sources and aggregates their unseen
// detail URLs, deduplicated across sources. A failing source is logged
// and skipped; discovery is best effort.
func (c *Crawler) DiscoverAll(ctx context.Context, sources []models.CrawlSource) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range sources {
		src := &sources[i]
		if src.SourceType != models.SourceTypeList {
			continue
		}
		urls, err := c.Discover(ctx, src)
		if err != nil {
			c.log.Warn("list discovery failed", zap.String("url", src.URL), zap.Error(err))
			continue
		}
		for _, u := range urls {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// ExtractDetailURLs pulls candidate detail links out of a listing page.
// Links are absolutized against the page URL (or cfg.BaseURL when set),
// normalized, deduplicated within the page and capped at the limit.
func ExtractDetailURLs(html, pageURL string, cfg ListConfig, defaultMax int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("listing page url: %w", err)
	}
	if cfg.BaseURL != "" {
		if b, err := url.Parse(cfg.BaseURL); err == nil {
			base = b
		}
	}

	var hrefRe *regexp.Regexp
	if cfg.HrefPattern != "" {
		hrefRe, err = regexp.Compile(cfg.HrefPattern)
		if err != nil {
			return nil, fmt.Errorf("href pattern: %w", err)
		}
	}

	selector := cfg.LinkSelector
	if selector == "" {
		selector = "a[href]"
	}
	limit := cfg.MaxURLs
	if limit <= 0 {
		limit = defaultMax
	}

	seen := make(map[string]struct{})
	var out []string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		if hrefRe != nil && !hrefRe.MatchString(abs.String()) {
			return true
		}
		norm := NormalizeURL(abs)
		if _, dup := seen[norm]; dup {
			return true
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
		return len(out) < limit
	})
	return out, nil
}

// NormalizeURL strips the fragment and lowercases scheme and host so that
// cosmetic variants hash identically.
func NormalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	return c.String()
}

// HashURL is the dedupe key for a normalized URL.
func HashURL(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
