package normalizer

import (
	"testing"
	"time"

	"stagecrawl/internal/models"
)

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		in   string
		want string // local "2006-01-02 15:04", "" means no value
	}{
		{"2025-01-15T19:00:00", "2025-01-15 19:00"},
		{"2025-01-15T19:00", "2025-01-15 19:00"},
		{"2025년 1월 15일 오후 7시", "2025-01-15 19:00"},
		{"2025년 1월 15일 오후 7시 30분", "2025-01-15 19:30"},
		{"2025년 1월 15일 오전 11시", "2025-01-15 11:00"},
		{"2025년 12월 3일(수) 오후 12시", "2025-12-03 12:00"},
		{"2025년 1월 15일(수) 19:30", "2025-01-15 19:30"},
		{"2025년 1월 15일", "2025-01-15 00:00"},
		{"2025.01.15 19:00", "2025-01-15 19:00"},
		{"2025.1.5", "2025-01-05 00:00"},
		{"2025-01-15 19:00", "2025-01-15 19:00"},
		{"2025/01/15", "2025-01-15 00:00"},
		{"2025.07.05", "2025-07-05 00:00"},
		{"not a date", ""},
		{"", ""},
		{"2025.13.40", ""},
		{"99999", ""},
		{"내년 봄", ""},
	}
	for _, tt := range tests {
		got := ParseDateTime(tt.in)
		if tt.want == "" {
			if got != nil {
				t.Fatalf("ParseDateTime(%q) = %v, want nil", tt.in, got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("ParseDateTime(%q) = nil, want %s", tt.in, tt.want)
		}
		if s := got.Format("2006-01-02 15:04"); s != tt.want {
			t.Fatalf("ParseDateTime(%q) = %s, want %s", tt.in, s, tt.want)
		}
	}
}

func TestParseDateTimeDotEqualsISO(t *testing.T) {
	dot := ParseDateTime("2025.01.15 19:00")
	iso := ParseDateTime("2025-01-15T19:00")
	if dot == nil || iso == nil || !dot.Equal(*iso) {
		t.Fatalf("dot %v and iso %v should be the same instant", dot, iso)
	}
}

func TestParseVenue(t *testing.T) {
	tests := []struct {
		venue, addr  string
		wantName     string
		wantAddress  string
	}{
		{"블루스퀘어 (서울시 용산구 이태원로 294)", "", "블루스퀘어", "서울시 용산구 이태원로 294"},
		{"블루스퀘어", "서울시 용산구 이태원로 294", "블루스퀘어", "서울시 용산구 이태원로 294"},
		// separate address wins over the parenthetical
		{"블루스퀘어 (구주소)", "서울시 용산구 이태원로 294", "블루스퀘어", "서울시 용산구 이태원로 294"},
		{"올림픽공원 KSPO돔 서울 송파구 올림픽로 424", "", "올림픽공원 KSPO돔", "서울 송파구 올림픽로 424"},
		{"잠실종합운동장", "", "잠실종합운동장", ""},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		name, addr := ParseVenue(tt.venue, tt.addr)
		if name != tt.wantName || addr != tt.wantAddress {
			t.Fatalf("ParseVenue(%q, %q) = (%q, %q), want (%q, %q)",
				tt.venue, tt.addr, name, addr, tt.wantName, tt.wantAddress)
		}
	}
}

func TestInferEventType(t *testing.T) {
	tests := []struct {
		title string
		want  models.EventType
	}{
		{"2025 서울 재즈 페스티벌", models.EventTypeFestival},
		{"Pentaport Rock Festival", models.EventTypeFestival},
		{"뮤지컬 레베카", models.EventTypeMusical},
		{"반 고흐 전시회", models.EventTypeExhibition},
		{"아이유 단독 콘서트", models.EventTypeConcert},
		{"그냥 공연", models.EventTypeConcert},
	}
	for _, tt := range tests {
		if got := InferEventType(tt.title); got != tt.want {
			t.Fatalf("InferEventType(%q) = %s, want %s", tt.title, got, tt.want)
		}
	}
}

func rawFixture() *models.RawEvent {
	return &models.RawEvent{
		SourceSite: models.SiteYes24,
		SourceURL:  "http://ticket.yes24.com/Perf/12345",
		FetchedAt:  time.Now().UTC(),
		Title:      "아이유 단독 콘서트",
		StartAtRaw: "2025.03.01 19:00",
		VenueText:  "블루스퀘어 (서울시 용산구 이태원로 294)",
		PriceText:  "132,000원",
		PosterURLs: []string{"https://img.example/poster.jpg"},
	}
}

func TestNormalize(t *testing.T) {
	res := Normalize(rawFixture())
	if !res.Success {
		t.Fatalf("normalize failed: %s", res.ErrorMessage)
	}
	p := res.Prefill
	if p.Title != "아이유 단독 콘서트" {
		t.Fatalf("title: %q", p.Title)
	}
	if p.StartAt == nil || p.StartAt.Format("2006-01-02 15:04") != "2025-03-01 19:00" {
		t.Fatalf("startAt: %v", p.StartAt)
	}
	if p.VenueName != "블루스퀘어" || p.VenueAddress != "서울시 용산구 이태원로 294" {
		t.Fatalf("venue: %q / %q", p.VenueName, p.VenueAddress)
	}
	if p.EventType != models.EventTypeConcert {
		t.Fatalf("type: %s", p.EventType)
	}
	if p.Price == nil || p.Price.String() != "132000" {
		t.Fatalf("price: %v", p.Price)
	}
	if len(p.TicketLinks) == 0 || p.TicketLinks[0].URL != "http://ticket.yes24.com/Perf/12345" {
		t.Fatalf("source link must come first: %#v", p.TicketLinks)
	}
	if p.TicketLinks[0].Label != "YES24 티켓" {
		t.Fatalf("link label: %q", p.TicketLinks[0].Label)
	}
	// title 2 + start 2 + venue 1 + poster 1 + price 0.5 = 6.5 -> high
	if res.Confidence != models.ConfidenceHigh {
		t.Fatalf("want high, got %s (score %.1f)", res.Confidence, res.Score)
	}
	if len(res.Reasons) == 0 {
		t.Fatal("decisions must be explainable")
	}
}

func TestNormalizeUnparseableDateWarnsAndLowersConfidence(t *testing.T) {
	raw := rawFixture()
	raw.StartAtRaw = "추후 공지"
	res := Normalize(raw)
	if !res.Success {
		t.Fatalf("warning must not abort: %s", res.ErrorMessage)
	}
	if res.Prefill.StartAt != nil {
		t.Fatal("unparseable date must stay unset")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a date warning")
	}
	// title 2 + venue 1 + poster 1 + price 0.5 - 0.5 = 4 -> medium
	if res.Confidence != models.ConfidenceMedium {
		t.Fatalf("want medium, got %s (score %.1f)", res.Confidence, res.Score)
	}
}

func TestNormalizeWarningNeverRaisesConfidence(t *testing.T) {
	raw := rawFixture()
	base := Normalize(raw)

	withWarning := rawFixture()
	withWarning.PriceText = "가격 미정"
	res := Normalize(withWarning)
	if res.Confidence.Rank() > base.Confidence.Rank() {
		t.Fatalf("warning raised tier: %s > %s", res.Confidence, base.Confidence)
	}
	if res.Score >= base.Score {
		t.Fatalf("warning must lower score: %.1f >= %.1f", res.Score, base.Score)
	}
}

func TestNormalizeMonotonicInRecoveredFields(t *testing.T) {
	raw := &models.RawEvent{
		SourceSite: models.SiteUnknown,
		SourceURL:  "https://example.com/e",
		FetchedAt:  time.Now().UTC(),
		Title:      "공연",
	}
	prev := Normalize(raw)
	raw.StartAtRaw = "2025.03.01 19:00"
	next := Normalize(raw)
	if next.Confidence.Rank() < prev.Confidence.Rank() {
		t.Fatal("adding a field decreased the tier")
	}
	prev = next
	raw.VenueText = "블루스퀘어"
	next = Normalize(raw)
	if next.Confidence.Rank() < prev.Confidence.Rank() {
		t.Fatal("adding a field decreased the tier")
	}
}

func TestNormalizeRespectsExtractorHint(t *testing.T) {
	raw := rawFixture()
	raw.Title = "페스티벌처럼 보이는 콘서트"
	raw.EventTypeHint = models.EventTypeConcert
	res := Normalize(raw)
	if res.Prefill.EventType != models.EventTypeConcert {
		t.Fatalf("hint must win over inference, got %s", res.Prefill.EventType)
	}
}

func TestNormalizeNoTitleFails(t *testing.T) {
	res := Normalize(&models.RawEvent{SourceSite: models.SiteUnknown, SourceURL: "https://x.example"})
	if res.Success || res.ErrorCode != models.ErrNormalization {
		t.Fatalf("want NormalizationError, got %+v", res)
	}
	if Normalize(nil).Success {
		t.Fatal("nil raw must fail")
	}
}
