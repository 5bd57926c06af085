package extractor

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stagecrawl/internal/models"
	"stagecrawl/internal/sitedetect"
)

// genericExtractor is the always-matching fallback for official sites and
// unknown hosts. It has no site-specific anchors, so it only trusts
// structured data (high), OpenGraph tags (medium), and basic meta/<title>
// tags (low).
type genericExtractor struct {
	det *sitedetect.Detector
}

func NewGeneric(det *sitedetect.Detector) Extractor {
	return &genericExtractor{det: det}
}

func (e *genericExtractor) Name() string { return "generic" }

func (e *genericExtractor) CanHandle(string) bool { return true }

func (e *genericExtractor) Extract(html, url string) models.ExtractorResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return failResult(models.ErrExtractionFailed, "html parse: "+err.Error())
	}
	site := e.det.Detect(url)
	fetchedAt := time.Now().UTC()

	if ev := eventFromJSONLD(doc, site, url, fetchedAt); ev != nil {
		return models.ExtractorResult{
			Success:    true,
			Event:      ev,
			Confidence: models.ConfidenceHigh,
			Method:     models.MethodJSONLD,
		}
	}

	if title := ogTitle(doc); title != "" {
		ev := &models.RawEvent{
			SourceSite: site,
			SourceURL:  url,
			FetchedAt:  fetchedAt,
			Title:      title,
		}
		if desc := doc.Find(`meta[property="og:description"]`).AttrOr("content", ""); strings.TrimSpace(desc) != "" {
			ev.Description = strings.TrimSpace(desc)
		}
		if img := doc.Find(`meta[property="og:image"]`).AttrOr("content", ""); strings.TrimSpace(img) != "" {
			ev.PosterURLs = []string{strings.TrimSpace(img)}
		}
		return models.ExtractorResult{
			Success:    true,
			Event:      ev,
			Confidence: models.ConfidenceMedium,
			Method:     models.MethodDOM,
			Warnings:   []string{"no structured data; extracted from OpenGraph tags"},
		}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return failResult(models.ErrExtractionFailed, "no usable title or structured data")
	}
	ev := &models.RawEvent{
		SourceSite: site,
		SourceURL:  url,
		FetchedAt:  fetchedAt,
		Title:      title,
	}
	if desc := doc.Find(`meta[name="description"]`).AttrOr("content", ""); strings.TrimSpace(desc) != "" {
		ev.Description = strings.TrimSpace(desc)
	}
	return models.ExtractorResult{
		Success:    true,
		Event:      ev,
		Confidence: models.ConfidenceLow,
		Method:     models.MethodDOM,
		Warnings:   []string{"no structured data or OpenGraph tags; title-only extraction"},
	}
}
