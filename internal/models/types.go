package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Site identifies a known ticketing source. Detection order matters,
// so the list of sites lives with the detector; the type lives here
// because every pipeline stage carries it.
type Site string

const (
	SiteYes24     Site = "yes24"
	SiteInterpark Site = "interpark"
	SiteMelon     Site = "melon"
	SiteOfficial  Site = "official"
	SiteUnknown   Site = "unknown"
)

// Confidence is the coarse trust tier attached to extraction and
// normalization results.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders tiers so monotonicity can be asserted.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

type ExtractionMethod string

const (
	MethodJSONLD       ExtractionMethod = "json-ld"
	MethodEmbeddedJSON ExtractionMethod = "embedded-json"
	MethodDOM          ExtractionMethod = "dom"
)

type EventType string

const (
	EventTypeConcert    EventType = "concert"
	EventTypeFestival   EventType = "festival"
	EventTypeMusical    EventType = "musical"
	EventTypeExhibition EventType = "exhibition"
)

// ErrorCode is the pipeline-internal failure taxonomy. The HTTP surface
// collapses these into INVALID_URL / FETCH_FAILED / PARSE_FAILED.
type ErrorCode string

const (
	ErrInvalidURL             ErrorCode = "InvalidUrl"
	ErrUnsupportedProtocol    ErrorCode = "UnsupportedProtocol"
	ErrFetchTimeout           ErrorCode = "FetchTimeout"
	ErrNetworkError           ErrorCode = "NetworkError"
	ErrHTTPError              ErrorCode = "HttpError"
	ErrUnsupportedContentType ErrorCode = "UnsupportedContentType"
	ErrEmptyResponse          ErrorCode = "EmptyResponse"
	ErrExtractionFailed       ErrorCode = "ExtractionFailed"
	ErrUnsupportedSite        ErrorCode = "UnsupportedSite"
	ErrNormalization          ErrorCode = "NormalizationError"
	ErrLowConfidenceReject    ErrorCode = "LowConfidenceReject"
)

// RawEvent is the loosely-typed output of one extraction. SourceSite,
// SourceURL and FetchedAt are always set, even on partial extraction;
// every other field is empty when unknown, never defaulted.
type RawEvent struct {
	SourceSite       Site      `json:"sourceSite"`
	SourceURL        string    `json:"sourceUrl"`
	FetchedAt        time.Time `json:"fetchedAt"`
	Title            string    `json:"title,omitempty"`
	StartAtRaw       string    `json:"startAtRaw,omitempty"`
	EndAtRaw         string    `json:"endAtRaw,omitempty"`
	VenueText        string    `json:"venueText,omitempty"`
	VenueAddressText string    `json:"venueAddressText,omitempty"`
	PriceText        string    `json:"priceText,omitempty"`
	PosterURLs       []string  `json:"posterUrls,omitempty"`
	ArtistNames      []string  `json:"artistNames,omitempty"`
	EventTypeHint    EventType `json:"eventTypeHint,omitempty"`
	Description      string    `json:"description,omitempty"`
	TicketingURLs    []string  `json:"ticketingUrls,omitempty"`
	AgeRating        string    `json:"ageRating,omitempty"`
}

// ExtractorResult carries exactly one of Event or ErrorMessage.
type ExtractorResult struct {
	Success      bool             `json:"success"`
	Event        *RawEvent        `json:"event,omitempty"`
	Confidence   Confidence       `json:"confidence"`
	Method       ExtractionMethod `json:"method,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	ErrorCode    ErrorCode        `json:"errorCode,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
}

// TicketLink is one labelled ticketing URL; the source link is always first.
type TicketLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// PrefillData is the canonical, fully-typed candidate derived from a
// RawEvent. It never carries raw unparsed text.
type PrefillData struct {
	Title        string           `json:"title,omitempty"`
	StartAt      *time.Time       `json:"startAt,omitempty"`
	EndAt        *time.Time       `json:"endAt,omitempty"`
	VenueName    string           `json:"venueName,omitempty"`
	VenueAddress string           `json:"venueAddress,omitempty"`
	EventType    EventType        `json:"eventType,omitempty"`
	PosterURL    string           `json:"posterUrl,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	TicketLinks  []TicketLink     `json:"ticketLinks,omitempty"`
	Artists      []string         `json:"artists,omitempty"`
	Description  string           `json:"description,omitempty"`
	OfficialURL  string           `json:"officialUrl,omitempty"`
}
