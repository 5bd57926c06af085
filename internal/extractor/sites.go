package extractor

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stagecrawl/internal/models"
	"stagecrawl/internal/sitedetect"
)

// siteExtractor is the shared strategy for every known ticketing site:
// structured data first, embedded hydration state second, anchored DOM
// patterns last. Only the pattern table and the CSR guard differ per site.
type siteExtractor struct {
	name     string
	site     models.Site
	det      *sitedetect.Detector
	patterns fieldPatterns
	csrGuard bool
}

func NewYes24(det *sitedetect.Detector) Extractor {
	return &siteExtractor{name: "yes24", site: models.SiteYes24, det: det, patterns: yes24Patterns}
}

func NewInterpark(det *sitedetect.Detector) Extractor {
	return &siteExtractor{name: "interpark", site: models.SiteInterpark, det: det, patterns: interparkPatterns}
}

// Melon detail pages arrive as client-rendered shells, so the guard runs
// before any DOM work.
func NewMelon(det *sitedetect.Detector) Extractor {
	return &siteExtractor{name: "melon", site: models.SiteMelon, det: det, patterns: melonPatterns, csrGuard: true}
}

func (e *siteExtractor) Name() string { return e.name }

func (e *siteExtractor) CanHandle(url string) bool {
	return e.det.Detect(url) == e.site
}

func (e *siteExtractor) Extract(html, url string) models.ExtractorResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return failResult(models.ErrExtractionFailed, "html parse: "+err.Error())
	}
	fetchedAt := time.Now().UTC()

	if ev := eventFromJSONLD(doc, e.site, url, fetchedAt); ev != nil {
		return models.ExtractorResult{
			Success:    true,
			Event:      ev,
			Confidence: models.ConfidenceHigh,
			Method:     models.MethodJSONLD,
		}
	}

	if ev := eventFromEmbeddedJSON(doc, html, e.site, url, fetchedAt); ev != nil {
		return models.ExtractorResult{
			Success:    true,
			Event:      ev,
			Confidence: models.ConfidenceHigh,
			Method:     models.MethodEmbeddedJSON,
		}
	}

	if e.csrGuard {
		if csr, reason := looksClientRendered(doc, html); csr {
			return failResult(models.ErrUnsupportedSite,
				"automatic extraction is not supported for this site ("+reason+"); please enter the event manually")
		}
	}

	return extractByPatterns(html, e.patterns, e.site, url, fetchedAt)
}
