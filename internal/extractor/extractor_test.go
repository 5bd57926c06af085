package extractor

import (
	"strings"
	"testing"

	"stagecrawl/internal/models"
	"stagecrawl/internal/sitedetect"
)

const yes24URL = "http://ticket.yes24.com/Perf/12345"
const interparkURL = "https://tickets.interpark.com/goods/24001234"
const melonURL = "https://ticket.melon.com/performance/index.htm?prodId=20987"

func testRegistry() *Registry {
	return DefaultRegistry(sitedetect.New())
}

func TestRegistryResolvesExactlyOne(t *testing.T) {
	r := testRegistry()
	tests := []struct {
		url  string
		want string
	}{
		{yes24URL, "yes24"},
		{interparkURL, "interpark"},
		{melonURL, "melon"},
		{"https://example.com/event/1", "generic"},
		{"https://www.band-official.com/tour", "generic"},
	}
	for _, tt := range tests {
		e := r.Resolve(tt.url)
		if e == nil {
			t.Fatalf("Resolve(%q) = nil", tt.url)
		}
		if e.Name() != tt.want {
			t.Fatalf("Resolve(%q) = %s, want %s", tt.url, e.Name(), tt.want)
		}
	}
}

func TestRegistryGenericOnlyWhenNoSiteMatch(t *testing.T) {
	r := testRegistry()
	for _, e := range r.Extractors() {
		if e.Name() == "generic" {
			continue
		}
		if e.CanHandle("https://totally-unrelated.example/page") {
			t.Fatalf("%s claims an unrelated url", e.Name())
		}
	}
	if !r.Resolve("https://totally-unrelated.example/page").CanHandle("anything") {
		t.Fatal("fallback must handle every url")
	}
}

const jsonLDPage = `<!doctype html><html><head><title>YES24 티켓</title>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "MusicEvent",
  "name": "2025 아이유 콘서트",
  "startDate": "2025-03-01T19:00:00+09:00",
  "endDate": "2025-03-02T21:00:00+09:00",
  "image": ["https://img.example/poster.jpg"],
  "location": {
    "@type": "Place",
    "name": "블루스퀘어",
    "address": {"@type": "PostalAddress", "addressLocality": "서울시 용산구", "streetAddress": "이태원로 294"}
  },
  "offers": {"@type": "Offer", "price": "132000", "priceCurrency": "KRW"},
  "performer": {"@type": "Person", "name": "아이유"}
}
</script></head><body><p>detail</p></body></html>`

func TestExtractJSONLD(t *testing.T) {
	res := testRegistry().Resolve(yes24URL).Extract(jsonLDPage, yes24URL)
	if !res.Success {
		t.Fatalf("extract failed: %s", res.ErrorMessage)
	}
	if res.Method != models.MethodJSONLD || res.Confidence != models.ConfidenceHigh {
		t.Fatalf("want json-ld/high, got %s/%s", res.Method, res.Confidence)
	}
	ev := res.Event
	if ev.Title != "2025 아이유 콘서트" {
		t.Fatalf("title: %q", ev.Title)
	}
	if ev.StartAtRaw != "2025-03-01T19:00:00+09:00" || ev.EndAtRaw == "" {
		t.Fatalf("dates: %q / %q", ev.StartAtRaw, ev.EndAtRaw)
	}
	if ev.VenueText != "블루스퀘어" {
		t.Fatalf("venue: %q", ev.VenueText)
	}
	if !strings.Contains(ev.VenueAddressText, "이태원로") {
		t.Fatalf("address: %q", ev.VenueAddressText)
	}
	if ev.PriceText != "132000 KRW" {
		t.Fatalf("price: %q", ev.PriceText)
	}
	if len(ev.ArtistNames) != 1 || ev.ArtistNames[0] != "아이유" {
		t.Fatalf("artists: %#v", ev.ArtistNames)
	}
	if ev.EventTypeHint != models.EventTypeConcert {
		t.Fatalf("type hint: %q", ev.EventTypeHint)
	}
	if ev.SourceSite != models.SiteYes24 || ev.SourceURL != yes24URL || ev.FetchedAt.IsZero() {
		t.Fatal("source fields must always be set")
	}
}

const nextDataPage = `<!doctype html><html><head><title>인터파크 티켓</title></head><body>
<div id="__next"></div>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"prodData":{
  "prodName":"뮤지컬 레베카",
  "playDate":"2025.04.10 ~ 2025.06.22",
  "placeName":"충무아트센터 대극장",
  "price":"150,000원",
  "posterUrl":"https://img.example/rebecca.jpg",
  "castList":[{"name":"옥주현"},{"name":"신영숙"}]
}}}}
</script></body></html>`

func TestExtractEmbeddedJSON(t *testing.T) {
	res := testRegistry().Resolve(interparkURL).Extract(nextDataPage, interparkURL)
	if !res.Success {
		t.Fatalf("extract failed: %s", res.ErrorMessage)
	}
	if res.Method != models.MethodEmbeddedJSON || res.Confidence != models.ConfidenceHigh {
		t.Fatalf("want embedded-json/high, got %s/%s", res.Method, res.Confidence)
	}
	ev := res.Event
	if ev.Title != "뮤지컬 레베카" {
		t.Fatalf("title: %q", ev.Title)
	}
	if ev.VenueText != "충무아트센터 대극장" {
		t.Fatalf("venue: %q", ev.VenueText)
	}
	if len(ev.ArtistNames) != 2 {
		t.Fatalf("artists: %#v", ev.ArtistNames)
	}
}

func domPage(parts ...string) string {
	return `<!doctype html><html><head><title>x</title><meta property="og:title" content=""></head><body>` +
		strings.Join(parts, "\n") + strings.Repeat("<!-- pad -->", 200) + `</body></html>`
}

func TestExtractDOMScoring(t *testing.T) {
	title := `<h2 class="rn_ltitle">싸이 흠뻑쇼 2025</h2>`
	date := `<dd class="rn_lday">2025.07.05 ~ 2025.07.06</dd>`
	venue := `<dd class="rn_lplace">잠실종합운동장</dd>`
	price := `<dd class="rn_lprice">99,000원</dd>`
	poster := `<img class="rn_limg" src="https://img.example/psy.jpg">`

	e := testRegistry().Resolve(yes24URL)

	// title only: 2 points -> low
	res := e.Extract(domPage(title), yes24URL)
	if !res.Success || res.Confidence != models.ConfidenceLow {
		t.Fatalf("title only: want low, got %+v", res)
	}
	if res.Method != models.MethodDOM {
		t.Fatalf("want dom method, got %s", res.Method)
	}
	// unset fields stay unknown, never defaulted
	if res.Event.VenueText != "" || res.Event.PriceText != "" || len(res.Event.PosterURLs) != 0 {
		t.Fatalf("fabricated fields: %+v", res.Event)
	}

	// title+date: 4 points -> medium
	res = e.Extract(domPage(title, date), yes24URL)
	if res.Confidence != models.ConfidenceMedium {
		t.Fatalf("title+date: want medium, got %s", res.Confidence)
	}
	if res.Event.StartAtRaw != "2025.07.05" || res.Event.EndAtRaw != "2025.07.06" {
		t.Fatalf("range split: %q / %q", res.Event.StartAtRaw, res.Event.EndAtRaw)
	}

	// title+date+venue: 5 points -> high
	res = e.Extract(domPage(title, date, venue), yes24URL)
	if res.Confidence != models.ConfidenceHigh {
		t.Fatalf("title+date+venue: want high, got %s", res.Confidence)
	}

	// monotonic: adding recovered fields never decreases the tier
	prev := 0
	for i, page := range []string{
		domPage(title),
		domPage(title, date),
		domPage(title, date, venue),
		domPage(title, date, venue, price),
		domPage(title, date, venue, price, poster),
	} {
		r := e.Extract(page, yes24URL)
		if r.Confidence.Rank() < prev {
			t.Fatalf("step %d: tier decreased to %s", i, r.Confidence)
		}
		prev = r.Confidence.Rank()
	}
}

func TestExtractDOMNoTitleFails(t *testing.T) {
	res := testRegistry().Resolve(yes24URL).Extract(domPage(`<p>nothing here</p>`), yes24URL)
	if res.Success {
		t.Fatal("expected failure without title")
	}
	if res.ErrorCode != models.ErrExtractionFailed {
		t.Fatalf("want ExtractionFailed, got %s", res.ErrorCode)
	}
	if res.Event != nil {
		t.Fatal("failed result must not carry an event")
	}
}

func TestMelonCSRGuard(t *testing.T) {
	e := testRegistry().Resolve(melonURL)

	// short shell body
	res := e.Extract(`<html><head><title>멜론티켓</title></head><body><div id="app"></div></body></html>`, melonURL)
	if res.Success || res.ErrorCode != models.ErrUnsupportedSite {
		t.Fatalf("short shell: want UnsupportedSite, got %+v", res)
	}
	if !strings.Contains(res.ErrorMessage, "manually") {
		t.Fatalf("error should direct to manual entry: %q", res.ErrorMessage)
	}

	// long body but no og:title
	long := `<html><head><title>어떤 공연</title></head><body>` + strings.Repeat("<div>shell</div>", 300) + `</body></html>`
	res = e.Extract(long, melonURL)
	if res.Success || res.ErrorCode != models.ErrUnsupportedSite {
		t.Fatalf("no og:title: want UnsupportedSite, got %+v", res)
	}

	// structured data bypasses the guard entirely
	res = e.Extract(jsonLDPage, melonURL)
	if !res.Success || res.Method != models.MethodJSONLD {
		t.Fatalf("json-ld should bypass guard: %+v", res)
	}
}

func TestGenericCascade(t *testing.T) {
	e := testRegistry().Resolve("https://example.com/show/1")

	res := e.Extract(jsonLDPage, "https://example.com/show/1")
	if !res.Success || res.Confidence != models.ConfidenceHigh || res.Method != models.MethodJSONLD {
		t.Fatalf("json-ld: %+v", res)
	}

	og := `<html><head><title>t</title><meta property="og:title" content="밴드 단독 공연"><meta property="og:image" content="https://img.example/a.jpg"></head><body>x</body></html>`
	res = e.Extract(og, "https://example.com/show/1")
	if !res.Success || res.Confidence != models.ConfidenceMedium {
		t.Fatalf("og: %+v", res)
	}
	if res.Event.Title != "밴드 단독 공연" {
		t.Fatalf("og title: %q", res.Event.Title)
	}

	titleOnly := `<html><head><title>공연 안내 페이지</title></head><body>x</body></html>`
	res = e.Extract(titleOnly, "https://example.com/show/1")
	if !res.Success || res.Confidence != models.ConfidenceLow {
		t.Fatalf("title-only: %+v", res)
	}

	empty := `<html><head></head><body>x</body></html>`
	res = e.Extract(empty, "https://example.com/show/1")
	if res.Success || res.ErrorCode != models.ErrExtractionFailed {
		t.Fatalf("empty: %+v", res)
	}
}
