package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stagecrawl/internal/models"
)

// eventTypeForLDType maps Schema.org event subtypes onto our categories.
var eventTypeForLDType = map[string]models.EventType{
	"musicevent":      models.EventTypeConcert,
	"concert":         models.EventTypeConcert,
	"festival":        models.EventTypeFestival,
	"musicfestival":   models.EventTypeFestival,
	"theaterevent":    models.EventTypeMusical,
	"exhibitionevent": models.EventTypeExhibition,
	"visualartsevent": models.EventTypeExhibition,
}

// eventFromJSONLD scans ld+json script blocks for a Schema.org Event and
// maps it onto a RawEvent. Returns nil when no Event with a name exists.
func eventFromJSONLD(doc *goquery.Document, site models.Site, url string, fetchedAt time.Time) *models.RawEvent {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var parsed any
		if err := json.Unmarshal([]byte(s.Text()), &parsed); err != nil {
			return true // malformed block, keep scanning
		}
		if ev := findLDEvent(parsed); ev != nil {
			found = ev
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}

	name := ldString(found["name"])
	if name == "" {
		return nil
	}

	ev := &models.RawEvent{
		SourceSite: site,
		SourceURL:  url,
		FetchedAt:  fetchedAt,
		Title:      name,
		StartAtRaw: ldString(found["startDate"]),
		EndAtRaw:   ldString(found["endDate"]),
	}
	if desc := ldString(found["description"]); desc != "" {
		ev.Description = desc
	}
	if t, ok := found["@type"]; ok {
		if et, ok := eventTypeForLDType[strings.ToLower(ldString(t))]; ok {
			ev.EventTypeHint = et
		}
	}
	ev.PosterURLs = ldStrings(found["image"])

	if loc, ok := found["location"].(map[string]any); ok {
		ev.VenueText = ldString(loc["name"])
		switch addr := loc["address"].(type) {
		case string:
			ev.VenueAddressText = addr
		case map[string]any:
			parts := []string{}
			for _, k := range []string{"addressRegion", "addressLocality", "streetAddress"} {
				if v := ldString(addr[k]); v != "" {
					parts = append(parts, v)
				}
			}
			ev.VenueAddressText = strings.Join(parts, " ")
		}
	} else if loc := ldString(found["location"]); loc != "" {
		ev.VenueText = loc
	}

	switch offers := found["offers"].(type) {
	case map[string]any:
		ev.PriceText = offerPrice(offers)
	case []any:
		for _, o := range offers {
			if om, ok := o.(map[string]any); ok {
				if p := offerPrice(om); p != "" {
					ev.PriceText = p
					break
				}
			}
		}
	}

	switch perf := found["performer"].(type) {
	case map[string]any:
		if n := ldString(perf["name"]); n != "" {
			ev.ArtistNames = []string{n}
		}
	case []any:
		for _, p := range perf {
			if pm, ok := p.(map[string]any); ok {
				if n := ldString(pm["name"]); n != "" {
					ev.ArtistNames = append(ev.ArtistNames, n)
				}
			} else if n := ldString(p); n != "" {
				ev.ArtistNames = append(ev.ArtistNames, n)
			}
		}
	case string:
		ev.ArtistNames = []string{perf}
	}

	if u := ldString(found["url"]); u != "" && u != url {
		ev.TicketingURLs = append(ev.TicketingURLs, u)
	}
	return ev
}

// findLDEvent walks a parsed ld+json value (object, array, or @graph)
// looking for the first Event-typed node.
func findLDEvent(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if ev := findLDEvent(item); ev != nil {
				return ev
			}
		}
	case map[string]any:
		if isLDEventType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findLDEvent(graph)
		}
	}
	return nil
}

func isLDEventType(t any) bool {
	check := func(s string) bool {
		s = strings.ToLower(s)
		if s == "event" {
			return true
		}
		_, ok := eventTypeForLDType[s]
		return ok
	}
	switch tv := t.(type) {
	case string:
		return check(tv)
	case []any:
		for _, item := range tv {
			if s, ok := item.(string); ok && check(s) {
				return true
			}
		}
	}
	return false
}

func offerPrice(offer map[string]any) string {
	price := ldString(offer["price"])
	if price == "" {
		price = ldString(offer["lowPrice"])
	}
	if price == "" {
		return ""
	}
	if cur := ldString(offer["priceCurrency"]); cur != "" {
		return price + " " + cur
	}
	return price
}

func ldString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	}
	return ""
}

func ldStrings(v any) []string {
	switch s := v.(type) {
	case string:
		if t := strings.TrimSpace(s); t != "" {
			return []string{t}
		}
	case []any:
		var out []string
		for _, item := range s {
			if str := ldString(item); str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Embedded application state: frameworks hydrate pages from a JSON payload
// left in the markup. We look for the usual carriers and then search the
// payload for a product/event-shaped object by key heuristics.

var preloadedStateRe = regexp.MustCompile(`window\.__PRELOADED_STATE__\s*=\s*(\{.*?\});?\s*</script>`)

func eventFromEmbeddedJSON(doc *goquery.Document, html string, site models.Site, url string, fetchedAt time.Time) *models.RawEvent {
	var payloads []string
	if txt := doc.Find(`script#__NEXT_DATA__`).First().Text(); strings.TrimSpace(txt) != "" {
		payloads = append(payloads, txt)
	}
	if m := preloadedStateRe.FindStringSubmatch(html); m != nil {
		payloads = append(payloads, m[1])
	}

	for _, payload := range payloads {
		var parsed any
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			continue
		}
		if obj := findEventShapedObject(parsed, 0); obj != nil {
			if ev := rawEventFromStateObject(obj, site, url, fetchedAt); ev != nil {
				return ev
			}
		}
	}
	return nil
}

// key aliases seen across ticketing hydration payloads
var (
	stateTitleKeys  = []string{"prodName", "goodsName", "perfName", "title", "name"}
	stateStartKeys  = []string{"playDate", "perfStartDate", "startDate", "periodStart", "playStartDate"}
	stateEndKeys    = []string{"perfEndDate", "endDate", "periodEnd", "playEndDate"}
	stateVenueKeys  = []string{"placeName", "venueName", "hallName", "place"}
	statePriceKeys  = []string{"priceInfo", "ticketPrice", "price"}
	statePosterKeys = []string{"posterUrl", "posterImage", "imgUrl", "image"}
	stateCastKeys   = []string{"castList", "cast", "artists", "performers"}
	stateAgeKeys    = []string{"ageLimit", "ageGrade", "viewGrade"}
)

const maxStateDepth = 12

// findEventShapedObject DFS-walks hydration state for an object that has a
// title-like key plus at least one schedule/venue key. First hit wins.
func findEventShapedObject(v any, depth int) map[string]any {
	if depth > maxStateDepth {
		return nil
	}
	switch node := v.(type) {
	case map[string]any:
		if firstStateString(node, stateTitleKeys) != "" &&
			(firstStateString(node, stateStartKeys) != "" || firstStateString(node, stateVenueKeys) != "") {
			return node
		}
		for _, child := range node {
			if obj := findEventShapedObject(child, depth+1); obj != nil {
				return obj
			}
		}
	case []any:
		for _, child := range node {
			if obj := findEventShapedObject(child, depth+1); obj != nil {
				return obj
			}
		}
	}
	return nil
}

func firstStateString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s := ldString(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func rawEventFromStateObject(obj map[string]any, site models.Site, url string, fetchedAt time.Time) *models.RawEvent {
	title := firstStateString(obj, stateTitleKeys)
	if title == "" {
		return nil
	}
	ev := &models.RawEvent{
		SourceSite: site,
		SourceURL:  url,
		FetchedAt:  fetchedAt,
		Title:      title,
		StartAtRaw: firstStateString(obj, stateStartKeys),
		EndAtRaw:   firstStateString(obj, stateEndKeys),
		VenueText:  firstStateString(obj, stateVenueKeys),
		PriceText:  firstStateString(obj, statePriceKeys),
		AgeRating:  firstStateString(obj, stateAgeKeys),
	}
	if poster := firstStateString(obj, statePosterKeys); poster != "" {
		ev.PosterURLs = []string{poster}
	}
	for _, k := range stateCastKeys {
		switch cast := obj[k].(type) {
		case []any:
			for _, c := range cast {
				if s := ldString(c); s != "" {
					ev.ArtistNames = append(ev.ArtistNames, s)
				} else if cm, ok := c.(map[string]any); ok {
					if n := firstStateString(cm, []string{"name", "artistName"}); n != "" {
						ev.ArtistNames = append(ev.ArtistNames, n)
					}
				}
			}
		case string:
			for _, part := range strings.Split(cast, ",") {
				if s := strings.TrimSpace(part); s != "" {
					ev.ArtistNames = append(ev.ArtistNames, s)
				}
			}
		}
		if len(ev.ArtistNames) > 0 {
			break
		}
	}
	return ev
}
