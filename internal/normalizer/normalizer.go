package normalizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"stagecrawl/internal/models"
)

// NormalizeResult carries the canonical candidate plus the normalizer's own
// confidence, which is scored independently of the extractor's tier and can
// be lower (a high-confidence extraction whose date fails to parse loses
// points here).
type NormalizeResult struct {
	Success      bool
	Prefill      *models.PrefillData
	Confidence   models.Confidence
	Score        float64
	Warnings     []string
	Reasons      []string
	ErrorCode    models.ErrorCode
	ErrorMessage string
}

// presence weights and the warning penalty for the normalizer score;
// buckets match the extractor tiers (≥5 high, ≥3 medium, else low)
const (
	weightTitle    = 2.0
	weightStart    = 2.0
	weightVenue    = 1.0
	weightPoster   = 1.0
	weightPrice    = 0.5
	weightArtists  = 0.5
	warningPenalty = 0.5

	scoreHigh   = 5.0
	scoreMedium = 3.0
)

var sourceLinkLabels = map[models.Site]string{
	models.SiteYes24:     "YES24 티켓",
	models.SiteInterpark: "인터파크 티켓",
	models.SiteMelon:     "멜론티켓",
	models.SiteOfficial:  "공식 사이트",
	models.SiteUnknown:   "티켓 링크",
}

var festivalTokens = []string{"페스티벌", "festival", "fest"}
var musicalTokens = []string{"뮤지컬", "musical"}
var exhibitionTokens = []string{"전시", "exhibition"}

// InferEventType keyword-matches the title; concert is the default.
func InferEventType(title string) models.EventType {
	t := strings.ToLower(title)
	for _, tok := range festivalTokens {
		if strings.Contains(t, tok) {
			return models.EventTypeFestival
		}
	}
	for _, tok := range musicalTokens {
		if strings.Contains(t, tok) {
			return models.EventTypeMusical
		}
	}
	for _, tok := range exhibitionTokens {
		if strings.Contains(t, tok) {
			return models.EventTypeExhibition
		}
	}
	return models.EventTypeConcert
}

var priceNumberRe = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)(?:\s*원)?`)

// parsePrice pulls the first money-like number out of free price text.
func parsePrice(text string) *decimal.Decimal {
	m := priceNumberRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &d
}

// Normalize converts one RawEvent into canonical prefill data. Unparseable
// optional fields become warnings, never failures; only a missing title is
// fatal.
func Normalize(raw *models.RawEvent) NormalizeResult {
	if raw == nil {
		return NormalizeResult{
			Success:      false,
			Confidence:   models.ConfidenceLow,
			ErrorCode:    models.ErrNormalization,
			ErrorMessage: "no raw event to normalize",
		}
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return NormalizeResult{
			Success:      false,
			Confidence:   models.ConfidenceLow,
			ErrorCode:    models.ErrNormalization,
			ErrorMessage: "raw event has no title",
		}
	}

	var warnings, reasons []string
	score := 0.0

	prefill := &models.PrefillData{Title: title}
	score += weightTitle
	reasons = append(reasons, "title present")

	if raw.StartAtRaw != "" {
		if t := ParseDateTime(raw.StartAtRaw); t != nil {
			prefill.StartAt = t
			score += weightStart
			reasons = append(reasons, "start date parsed")
		} else {
			warnings = append(warnings, fmt.Sprintf("start date text %q did not parse", raw.StartAtRaw))
		}
	}
	if raw.EndAtRaw != "" {
		if t := ParseDateTime(raw.EndAtRaw); t != nil {
			prefill.EndAt = t
		} else {
			warnings = append(warnings, fmt.Sprintf("end date text %q did not parse", raw.EndAtRaw))
		}
	}

	if raw.VenueText != "" || raw.VenueAddressText != "" {
		name, address := ParseVenue(raw.VenueText, raw.VenueAddressText)
		prefill.VenueName = name
		prefill.VenueAddress = address
		if name != "" {
			score += weightVenue
			reasons = append(reasons, "venue present")
		} else {
			warnings = append(warnings, "venue text yielded no name")
		}
	}

	if raw.EventTypeHint != "" {
		prefill.EventType = raw.EventTypeHint
	} else {
		prefill.EventType = InferEventType(title)
	}

	if len(raw.PosterURLs) > 0 {
		prefill.PosterURL = raw.PosterURLs[0]
		score += weightPoster
		reasons = append(reasons, "poster present")
	}

	if raw.PriceText != "" {
		if p := parsePrice(raw.PriceText); p != nil {
			prefill.Price = p
			score += weightPrice
			reasons = append(reasons, "price parsed")
		} else {
			warnings = append(warnings, fmt.Sprintf("price text %q did not parse", raw.PriceText))
		}
	}

	if len(raw.ArtistNames) > 0 {
		prefill.Artists = append([]string(nil), raw.ArtistNames...)
		score += weightArtists
		reasons = append(reasons, "artists present")
	}

	if raw.Description != "" {
		prefill.Description = raw.Description
	}
	if raw.SourceSite == models.SiteOfficial {
		prefill.OfficialURL = raw.SourceURL
	}

	// source link always leads; extra distinct ticketing links follow
	prefill.TicketLinks = []models.TicketLink{{
		Label: sourceLinkLabels[raw.SourceSite],
		URL:   raw.SourceURL,
	}}
	for _, u := range raw.TicketingURLs {
		u = strings.TrimSpace(u)
		if u == "" || u == raw.SourceURL {
			continue
		}
		dup := false
		for _, l := range prefill.TicketLinks {
			if l.URL == u {
				dup = true
				break
			}
		}
		if !dup {
			prefill.TicketLinks = append(prefill.TicketLinks, models.TicketLink{Label: "예매처", URL: u})
		}
	}

	if n := len(warnings); n > 0 {
		score -= warningPenalty * float64(n)
		reasons = append(reasons, fmt.Sprintf("%d warning(s) lowered score by %.1f", n, warningPenalty*float64(n)))
	}

	confidence := models.ConfidenceLow
	switch {
	case score >= scoreHigh:
		confidence = models.ConfidenceHigh
	case score >= scoreMedium:
		confidence = models.ConfidenceMedium
	}

	return NormalizeResult{
		Success:    true,
		Prefill:    prefill,
		Confidence: confidence,
		Score:      score,
		Warnings:   warnings,
		Reasons:    reasons,
	}
}
