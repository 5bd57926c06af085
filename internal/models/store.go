package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SuggestionType string

const (
	SuggestionNew    SuggestionType = "new"
	SuggestionUpdate SuggestionType = "update"
)

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionApproved SuggestionStatus = "approved"
	SuggestionApplied  SuggestionStatus = "applied"
	SuggestionRejected SuggestionStatus = "rejected"
)

// ChangeSuggestion is a proposed creation or update of a canonical event.
// Status moves only through pending→approved→applied or pending→rejected;
// applied and rejected are terminal. A later re-crawl that disagrees
// produces a new suggestion rather than mutating this one.
type ChangeSuggestion struct {
	ID                uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SuggestionType    SuggestionType   `gorm:"type:varchar(10);not null;index" json:"suggestionType"`
	TargetEventID     *uint64          `gorm:"index" json:"targetEventId,omitempty"`
	SuggestedData     datatypes.JSON   `gorm:"type:jsonb;not null" json:"suggestedData"`
	Confidence        Confidence       `gorm:"type:varchar(10);not null" json:"confidence"`
	ConfidenceReasons datatypes.JSON   `gorm:"type:jsonb" json:"confidenceReasons,omitempty"`
	DiffFields        datatypes.JSON   `gorm:"type:jsonb" json:"diffFields,omitempty"`
	DiffDetail        datatypes.JSON   `gorm:"type:jsonb" json:"diffDetail,omitempty"`
	Status            SuggestionStatus `gorm:"type:varchar(10);not null;index;default:'pending'" json:"status"`
	SourceSite        Site             `gorm:"type:varchar(20);not null;index" json:"sourceSite"`
	SourceURL         string           `gorm:"type:text;not null" json:"sourceUrl"`
	ReviewedBy        string           `gorm:"type:varchar(100)" json:"reviewedBy,omitempty"`
	ReviewedAt        *time.Time       `gorm:"type:timestamptz" json:"reviewedAt,omitempty"`
	ReviewNotes       string           `gorm:"type:text" json:"reviewNotes,omitempty"`
	CreatedAt         time.Time        `gorm:"type:timestamptz;autoCreateTime;index" json:"createdAt"`
	UpdatedAt         time.Time        `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
}

func (ChangeSuggestion) TableName() string { return "change_suggestions" }

// RawSourceItem is the append-only audit record of one fetch+extract
// attempt. Never updated after insert.
type RawSourceItem struct {
	ID               uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AttemptID        string           `gorm:"type:varchar(36);not null;index" json:"attemptId"`
	SourceSite       Site             `gorm:"type:varchar(20);not null;index" json:"sourceSite"`
	SourceURL        string           `gorm:"type:text;not null;index" json:"sourceUrl"`
	FetchedAt        time.Time        `gorm:"type:timestamptz;not null" json:"fetchedAt"`
	HTTPStatus       int              `json:"httpStatus,omitempty"`
	ContentType      string           `gorm:"type:varchar(100)" json:"contentType,omitempty"`
	Status           string           `gorm:"type:varchar(10);not null" json:"status"`
	ExtractionMethod ExtractionMethod `gorm:"type:varchar(20)" json:"extractionMethod,omitempty"`
	Confidence       Confidence       `gorm:"type:varchar(10)" json:"confidence,omitempty"`
	NormalizedData   datatypes.JSON   `gorm:"type:jsonb" json:"normalizedData,omitempty"`
	Warnings         datatypes.JSON   `gorm:"type:jsonb" json:"warnings,omitempty"`
	ErrorCode        ErrorCode        `gorm:"type:varchar(30)" json:"errorCode,omitempty"`
	ErrorMessage     string           `gorm:"type:text" json:"errorMessage,omitempty"`
	MatchedEventID   *uint64          `gorm:"index" json:"matchedEventId,omitempty"`
	SimilarityScore  *float64         `json:"similarityScore,omitempty"`
	CreatedAt        time.Time        `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (RawSourceItem) TableName() string { return "raw_source_items" }

type SourceType string

const (
	SourceTypeDetail SourceType = "detail"
	SourceTypeList   SourceType = "list"
)

// CrawlSource is a configured origin to poll. The scheduler is the only
// writer of NextCrawlAt and the failure counters.
type CrawlSource struct {
	ID                  uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	URL                 string         `gorm:"type:text;not null" json:"url"`
	SourceSite          Site           `gorm:"type:varchar(20);not null;index" json:"sourceSite"`
	SourceType          SourceType     `gorm:"type:varchar(10);not null" json:"sourceType"`
	IsActive            bool           `gorm:"not null;index;default:true" json:"isActive"`
	Priority            int            `gorm:"not null;default:0" json:"priority"`
	CrawlIntervalHours  int            `gorm:"not null;default:24" json:"crawlIntervalHours"`
	NextCrawlAt         *time.Time     `gorm:"type:timestamptz;index" json:"nextCrawlAt,omitempty"`
	SuccessCount        int            `gorm:"not null;default:0" json:"successCount"`
	FailureCount        int            `gorm:"not null;default:0" json:"failureCount"`
	ConsecutiveFailures int            `gorm:"not null;default:0" json:"consecutiveFailures"`
	LastError           string         `gorm:"type:text" json:"lastError,omitempty"`
	LastErrorAt         *time.Time     `gorm:"type:timestamptz" json:"lastErrorAt,omitempty"`
	ListConfig          datatypes.JSON `gorm:"type:jsonb" json:"listConfig,omitempty"`
	CreatedAt           time.Time      `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time      `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
}

func (CrawlSource) TableName() string { return "crawl_sources" }

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// CrawlRun records one scheduled or manual batch. Immutable once completed.
type CrawlRun struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID          string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"runId"`
	RunType        string         `gorm:"type:varchar(20);not null" json:"runType"`
	SourceID       *uint64        `gorm:"index" json:"sourceId,omitempty"`
	StartedAt      time.Time      `gorm:"type:timestamptz;not null" json:"startedAt"`
	CompletedAt    *time.Time     `gorm:"type:timestamptz" json:"completedAt,omitempty"`
	Status         RunStatus      `gorm:"type:varchar(10);not null;index" json:"status"`
	URLsDiscovered int            `gorm:"not null;default:0" json:"urlsDiscovered"`
	URLsProcessed  int            `gorm:"not null;default:0" json:"urlsProcessed"`
	NewEvents      int            `gorm:"not null;default:0" json:"newEvents"`
	UpdatedEvents  int            `gorm:"not null;default:0" json:"updatedEvents"`
	AutoApproved   int            `gorm:"not null;default:0" json:"autoApproved"`
	PendingReview  int            `gorm:"not null;default:0" json:"pendingReview"`
	Skipped        int            `gorm:"not null;default:0" json:"skipped"`
	Errors         int            `gorm:"not null;default:0" json:"errors"`
	DurationMs     int64          `gorm:"not null;default:0" json:"durationMs"`
	ErrorDetails   datatypes.JSON `gorm:"type:jsonb" json:"errorDetails,omitempty"`
}

func (CrawlRun) TableName() string { return "crawl_runs" }

// Event is the canonical record an applied suggestion writes into.
type Event struct {
	ID           uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title        string           `gorm:"type:text;not null;index" json:"title"`
	StartAt      *time.Time       `gorm:"type:timestamptz;index" json:"startAt,omitempty"`
	EndAt        *time.Time       `gorm:"type:timestamptz" json:"endAt,omitempty"`
	VenueName    string           `gorm:"type:text" json:"venueName,omitempty"`
	VenueAddress string           `gorm:"type:text" json:"venueAddress,omitempty"`
	EventType    EventType        `gorm:"type:varchar(20)" json:"eventType,omitempty"`
	PosterURL    string           `gorm:"type:text" json:"posterUrl,omitempty"`
	Price        *decimal.Decimal `gorm:"type:numeric(12,2)" json:"price,omitempty"`
	Description  string           `gorm:"type:text" json:"description,omitempty"`
	Artists      datatypes.JSON   `gorm:"type:jsonb" json:"artists,omitempty"`
	TicketLinks  datatypes.JSON   `gorm:"type:jsonb" json:"ticketLinks,omitempty"`
	SourceSite   Site             `gorm:"type:varchar(20);index" json:"sourceSite,omitempty"`
	SourceURL    string           `gorm:"type:text;index" json:"sourceUrl,omitempty"`
	CreatedAt    time.Time        `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time        `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
}

func (Event) TableName() string { return "events" }

// SeenURL backs list-crawl dedupe: one row per normalized URL hash.
type SeenURL struct {
	URLHash     string    `gorm:"primaryKey;type:varchar(64)" json:"urlHash"`
	URL         string    `gorm:"type:text;not null" json:"url"`
	FirstSeenAt time.Time `gorm:"type:timestamptz;not null" json:"firstSeenAt"`
	LastSeenAt  time.Time `gorm:"type:timestamptz;not null" json:"lastSeenAt"`
}

func (SeenURL) TableName() string { return "seen_urls" }
