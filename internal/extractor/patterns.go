package extractor

import (
	"regexp"
	"strings"
	"time"

	"stagecrawl/internal/models"
)

// fieldPatterns is the per-site battery of anchored regexes. Treating these
// as configuration feeding one shared routine keeps the site extractors from
// duplicating the same walk with different class names.
type fieldPatterns struct {
	Title     []*regexp.Regexp
	DateRange []*regexp.Regexp
	Venue     []*regexp.Regexp
	Price     []*regexp.Regexp
	Poster    []*regexp.Regexp
	Cast      []*regexp.Regexp
	AgeRating []*regexp.Regexp
}

// field points for the DOM tier: title 2, start date 2, venue 1, price 1,
// poster 1. ≥5 high, ≥3 medium, else low.
const (
	pointsTitle  = 2
	pointsStart  = 2
	pointsVenue  = 1
	pointsPrice  = 1
	pointsPoster = 1

	highThreshold   = 5
	mediumThreshold = 3
)

func tierForPoints(points int) models.Confidence {
	switch {
	case points >= highThreshold:
		return models.ConfidenceHigh
	case points >= mediumThreshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

var (
	tagStripRe    = regexp.MustCompile(`<[^>]+>`)
	dateRangeSpRe = regexp.MustCompile(`\s*[~∼–]\s*`)
)

func cleanMatch(s string) string {
	s = tagStripRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.Join(strings.Fields(s), " ")
}

func firstMatch(html string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(html); m != nil && len(m) > 1 {
			if v := cleanMatch(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

func allMatches(html string, patterns []*regexp.Regexp, limit int) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			if len(m) < 2 {
				continue
			}
			v := cleanMatch(m[1])
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// extractByPatterns runs the shared DOM battery for one site and scores
// the result by recovered-field points.
func extractByPatterns(html string, patterns fieldPatterns, site models.Site, url string, fetchedAt time.Time) models.ExtractorResult {
	ev := models.RawEvent{
		SourceSite: site,
		SourceURL:  url,
		FetchedAt:  fetchedAt,
	}
	points := 0
	var warnings []string

	if title := firstMatch(html, patterns.Title); title != "" {
		ev.Title = title
		points += pointsTitle
	} else {
		warnings = append(warnings, "title pattern did not match")
	}

	if rng := firstMatch(html, patterns.DateRange); rng != "" {
		parts := dateRangeSpRe.Split(rng, 2)
		ev.StartAtRaw = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			ev.EndAtRaw = strings.TrimSpace(parts[1])
		}
		if ev.StartAtRaw != "" {
			points += pointsStart
		}
	} else {
		warnings = append(warnings, "date pattern did not match")
	}

	if venue := firstMatch(html, patterns.Venue); venue != "" {
		ev.VenueText = venue
		points += pointsVenue
	}
	if price := firstMatch(html, patterns.Price); price != "" {
		ev.PriceText = price
		points += pointsPrice
	}
	if posters := allMatches(html, patterns.Poster, 5); len(posters) > 0 {
		ev.PosterURLs = posters
		points += pointsPoster
	}
	if cast := allMatches(html, patterns.Cast, 20); len(cast) > 0 {
		ev.ArtistNames = cast
	}
	if age := firstMatch(html, patterns.AgeRating); age != "" {
		ev.AgeRating = age
	}

	if ev.Title == "" {
		return failResult(models.ErrExtractionFailed, "no usable title found in markup")
	}
	return models.ExtractorResult{
		Success:    true,
		Event:      &ev,
		Confidence: tierForPoints(points),
		Method:     models.MethodDOM,
		Warnings:   warnings,
	}
}

// Per-site pattern tables. Class names track each site's current markup and
// are expected to rot; a non-match degrades confidence instead of failing.

var yes24Patterns = fieldPatterns{
	Title: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<h2[^>]*class="[^"]*rn_ltitle[^"]*"[^>]*>(.*?)</h2>`),
		regexp.MustCompile(`(?is)<meta property="og:title" content="([^"]+)"`),
	},
	DateRange: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<dd[^>]*class="[^"]*rn_lday[^"]*"[^>]*>(.*?)</dd>`),
		regexp.MustCompile(`(?is)공연기간\s*</dt>\s*<dd[^>]*>(.*?)</dd>`),
	},
	Venue: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<dd[^>]*class="[^"]*rn_lplace[^"]*"[^>]*>(.*?)</dd>`),
		regexp.MustCompile(`(?is)공연장\s*</dt>\s*<dd[^>]*>(.*?)</dd>`),
	},
	Price: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<dd[^>]*class="[^"]*rn_lprice[^"]*"[^>]*>(.*?)</dd>`),
		regexp.MustCompile(`(?i)([0-9,]+원)`),
	},
	Poster: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<img[^>]+class="[^"]*rn_limg[^"]*"[^>]+src="([^"]+)"`),
		regexp.MustCompile(`(?is)<meta property="og:image" content="([^"]+)"`),
	},
	Cast: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<a[^>]+class="[^"]*rn_lcast[^"]*"[^>]*>(.*?)</a>`),
	},
	AgeRating: []*regexp.Regexp{
		regexp.MustCompile(`(?is)관람등급\s*</dt>\s*<dd[^>]*>(.*?)</dd>`),
	},
}

var interparkPatterns = fieldPatterns{
	Title: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<h2[^>]*class="[^"]*prdTitle[^"]*"[^>]*>(.*?)</h2>`),
		regexp.MustCompile(`(?is)<meta property="og:title" content="([^"]+)"`),
	},
	DateRange: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<li[^>]*class="[^"]*infoDate[^"]*"[^>]*>(.*?)</li>`),
		regexp.MustCompile(`(?is)공연기간[^<]*</strong>\s*<span[^>]*>(.*?)</span>`),
	},
	Venue: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<li[^>]*class="[^"]*infoPlace[^"]*"[^>]*>(.*?)</li>`),
		regexp.MustCompile(`(?is)장소[^<]*</strong>\s*<span[^>]*>(.*?)</span>`),
	},
	Price: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<li[^>]*class="[^"]*infoPrice[^"]*"[^>]*>(.*?)</li>`),
		regexp.MustCompile(`(?i)([0-9,]+원)`),
	},
	Poster: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<div[^>]*class="[^"]*posterBox[^"]*"[^>]*>\s*<img[^>]+src="([^"]+)"`),
		regexp.MustCompile(`(?is)<meta property="og:image" content="([^"]+)"`),
	},
	Cast: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<li[^>]*class="[^"]*castName[^"]*"[^>]*>(.*?)</li>`),
	},
	AgeRating: []*regexp.Regexp{
		regexp.MustCompile(`(?is)관람등급[^<]*</strong>\s*<span[^>]*>(.*?)</span>`),
	},
}

// Melon's detail markup is hydrated client-side; these anchors only fire on
// the rare server-rendered variants that make it past the CSR guard.
var melonPatterns = fieldPatterns{
	Title: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<p[^>]*class="[^"]*tit_consert[^"]*"[^>]*>(.*?)</p>`),
		regexp.MustCompile(`(?is)<meta property="og:title" content="([^"]+)"`),
	},
	DateRange: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<dd[^>]*class="[^"]*txt_date[^"]*"[^>]*>(.*?)</dd>`),
	},
	Venue: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<dd[^>]*class="[^"]*txt_place[^"]*"[^>]*>(.*?)</dd>`),
	},
	Price: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<dd[^>]*class="[^"]*txt_price[^"]*"[^>]*>(.*?)</dd>`),
		regexp.MustCompile(`(?i)([0-9,]+원)`),
	},
	Poster: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<img[^>]+class="[^"]*poster[^"]*"[^>]+src="([^"]+)"`),
		regexp.MustCompile(`(?is)<meta property="og:image" content="([^"]+)"`),
	},
	Cast: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<a[^>]+class="[^"]*link_artist[^"]*"[^>]*>(.*?)</a>`),
	},
	AgeRating: []*regexp.Regexp{
		regexp.MustCompile(`(?is)<dd[^>]*class="[^"]*txt_age[^"]*"[^>]*>(.*?)</dd>`),
	},
}
