package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stagecrawl/internal/models"
	"stagecrawl/internal/sitedetect"
)

// Extractor turns fetched HTML into a raw event. CanHandle is a cheap URL
// predicate; Extract never fabricates a field it could not find.
type Extractor interface {
	Name() string
	CanHandle(url string) bool
	Extract(html, url string) models.ExtractorResult
}

// Registry holds an ordered list of extractors, generic fallback last.
// The first CanHandle match wins, so every URL resolves to exactly one
// extractor. Constructed once and passed by reference; tests substitute
// their own.
type Registry struct {
	extractors []Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// DefaultRegistry wires the known-site extractors in detection order with
// the generic fallback last.
func DefaultRegistry(det *sitedetect.Detector) *Registry {
	return NewRegistry(
		NewYes24(det),
		NewInterpark(det),
		NewMelon(det),
		NewGeneric(det),
	)
}

func (r *Registry) Resolve(url string) Extractor {
	for _, e := range r.extractors {
		if e.CanHandle(url) {
			return e
		}
	}
	// unreachable with the generic fallback registered; kept for
	// registries assembled without one
	return nil
}

func (r *Registry) Extractors() []Extractor { return r.extractors }

// minRenderedHTMLLength is the body-length floor below which a page from a
// CSR-known site is assumed to be an empty shell.
const minRenderedHTMLLength = 2048

// placeholder titles that CSR shells ship before hydration
var placeholderTitles = []string{
	"멜론티켓",
	"melon ticket",
	"loading",
	"페이지를 불러오는 중",
}

// looksClientRendered reports whether fetched markup is a client-side-rendered
// shell with no real content. Each signal is independently sufficient.
func looksClientRendered(doc *goquery.Document, html string) (bool, string) {
	if len(strings.TrimSpace(html)) < minRenderedHTMLLength {
		return true, "html body below minimum rendered length"
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, p := range placeholderTitles {
		if title == p {
			return true, "placeholder page title"
		}
	}
	if ogTitle(doc) == "" {
		return true, "missing og:title meta tag"
	}
	return false, ""
}

func ogTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
}

func failResult(code models.ErrorCode, msg string) models.ExtractorResult {
	return models.ExtractorResult{
		Success:      false,
		Confidence:   models.ConfidenceLow,
		ErrorCode:    code,
		ErrorMessage: msg,
	}
}
