package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stagecrawl/internal/approval"
	"stagecrawl/internal/extractor"
	"stagecrawl/internal/fetcher"
	"stagecrawl/internal/metrics"
	"stagecrawl/internal/models"
	"stagecrawl/internal/normalizer"
	"stagecrawl/internal/repository"
	"stagecrawl/internal/sitedetect"
)

// Public error codes exposed by the import API. The internal taxonomy is
// collapsed into three buckets callers can act on.
const (
	CodeInvalidURL  = "INVALID_URL"
	CodeFetchFailed = "FETCH_FAILED"
	CodeParseFailed = "PARSE_FAILED"
)

// Result is the outcome of one importUrl pass. On success Prefill and
// Confidence are set; on failure PublicCode carries the API error bucket
// and InternalCode the precise cause.
type Result struct {
	Success          bool                     `json:"success"`
	AttemptID        string                   `json:"attemptId"`
	Site             models.Site              `json:"site"`
	Method           models.ExtractionMethod  `json:"method,omitempty"`
	Confidence       models.Confidence        `json:"confidence,omitempty"`
	Prefill          *models.PrefillData      `json:"prefill,omitempty"`
	Warnings         []string                 `json:"warnings,omitempty"`
	Reasons          []string                 `json:"reasons,omitempty"`
	SuggestionID     *uint64                  `json:"suggestionId,omitempty"`
	SuggestionStatus models.SuggestionStatus  `json:"suggestionStatus,omitempty"`
	Skipped          bool                     `json:"skipped,omitempty"`
	MatchedEventID   *uint64                  `json:"matchedEventId,omitempty"`
	InternalCode     models.ErrorCode         `json:"internalCode,omitempty"`
	PublicCode       string                   `json:"errorCode,omitempty"`
	ErrorMessage     string                   `json:"errorMessage,omitempty"`
}

// PublicErrorCode buckets an internal error code for the API surface.
func PublicErrorCode(code models.ErrorCode) string {
	switch code {
	case models.ErrInvalidURL, models.ErrUnsupportedProtocol:
		return CodeInvalidURL
	case models.ErrFetchTimeout, models.ErrNetworkError, models.ErrHTTPError,
		models.ErrUnsupportedContentType, models.ErrEmptyResponse:
		return CodeFetchFailed
	default:
		return CodeParseFailed
	}
}

// Pipeline composes fetch, site detection, extraction, normalization and
// the approval decision. Store may be nil: the CLI runs the same pipeline
// without persistence or event matching.
type Pipeline struct {
	fetch  *fetcher.Fetcher
	det    *sitedetect.Detector
	reg    *extractor.Registry
	engine *approval.Engine
	store  repository.Store
	log    *zap.Logger
}

func New(fetch *fetcher.Fetcher, det *sitedetect.Detector, reg *extractor.Registry, engine *approval.Engine, store repository.Store, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{fetch: fetch, det: det, reg: reg, engine: engine, store: store, log: log}
}

// ImportURL runs the full pipeline for one URL. Every attempt, successful
// or not, leaves a RawSourceItem behind when a store is attached; the
// audit row is best-effort and never fails the import.
func (p *Pipeline) ImportURL(ctx context.Context, rawURL string) Result {
	started := time.Now()
	defer func() {
		metrics.ImportDuration.Observe(time.Since(started).Seconds())
	}()

	res := Result{
		AttemptID: uuid.NewString(),
		Site:      p.det.Detect(rawURL),
	}
	fetchedAt := time.Now().UTC()

	// path-shape pre-filter: a known site's help or board page never
	// becomes a detail page, so don't spend a fetch on it
	if ok, reason := p.det.ValidateTicketPage(rawURL); !ok {
		return p.fail(ctx, res, rawURL, fetchedAt, fetcher.FetchResult{}, models.ErrInvalidURL, reason)
	}

	fr := p.fetch.Fetch(ctx, rawURL)
	if !fr.Success {
		return p.fail(ctx, res, rawURL, fetchedAt, fr, fr.ErrorCode, fr.ErrorMessage)
	}

	// redirects can land on a different site than the submitted URL
	res.Site = p.det.Detect(fr.FinalURL)

	ext := p.reg.Resolve(fr.FinalURL)
	if ext == nil {
		return p.fail(ctx, res, rawURL, fetchedAt, fr, models.ErrUnsupportedSite, "no extractor accepts this url")
	}
	er := ext.Extract(fr.HTML, fr.FinalURL)
	res.Warnings = append(res.Warnings, er.Warnings...)
	if !er.Success {
		return p.fail(ctx, res, rawURL, fetchedAt, fr, er.ErrorCode, er.ErrorMessage)
	}
	res.Method = er.Method

	nr := normalizer.Normalize(er.Event)
	res.Warnings = append(res.Warnings, nr.Warnings...)
	if !nr.Success {
		return p.fail(ctx, res, rawURL, fetchedAt, fr, nr.ErrorCode, nr.ErrorMessage)
	}

	res.Success = true
	res.Prefill = nr.Prefill
	res.Reasons = nr.Reasons
	// the stricter of the extractor's tier and the normalizer's score wins
	res.Confidence = er.Confidence
	if nr.Confidence.Rank() < res.Confidence.Rank() {
		res.Confidence = nr.Confidence
	}

	if p.store != nil {
		p.decideAndPersist(ctx, &res, rawURL, fetchedAt, fr)
	}

	metrics.URLsProcessed.WithLabelValues(string(res.Site), "success").Inc()
	p.log.Info("url imported",
		zap.String("url", rawURL),
		zap.String("site", string(res.Site)),
		zap.String("method", string(res.Method)),
		zap.String("confidence", string(res.Confidence)))
	return res
}

func (p *Pipeline) fail(ctx context.Context, res Result, rawURL string, fetchedAt time.Time, fr fetcher.FetchResult, code models.ErrorCode, msg string) Result {
	res.Success = false
	res.InternalCode = code
	res.PublicCode = PublicErrorCode(code)
	res.ErrorMessage = msg

	metrics.URLsProcessed.WithLabelValues(string(res.Site), "error").Inc()
	metrics.ImportErrors.WithLabelValues(string(res.Site), string(code)).Inc()
	p.log.Warn("url import failed",
		zap.String("url", rawURL),
		zap.String("site", string(res.Site)),
		zap.String("code", string(code)),
		zap.String("error", msg))

	if p.store != nil {
		item := &models.RawSourceItem{
			AttemptID:    res.AttemptID,
			SourceSite:   res.Site,
			SourceURL:    rawURL,
			FetchedAt:    fetchedAt,
			HTTPStatus:   fr.StatusCode,
			ContentType:  fr.ContentType,
			Status:       "error",
			ErrorCode:    code,
			ErrorMessage: msg,
		}
		if err := p.store.InsertRawSourceItem(ctx, item); err != nil {
			p.log.Error("raw source item insert failed", zap.Error(err))
		}
	}
	return res
}

// decideAndPersist matches the candidate against stored events, runs the
// approval decision, writes the audit row and the suggestion, and applies
// auto-approved updates.
func (p *Pipeline) decideAndPersist(ctx context.Context, res *Result, rawURL string, fetchedAt time.Time, fr fetcher.FetchResult) {
	// low-tier candidates are returned to the caller but never become
	// suggestions; the audit row records the rejection
	if res.Confidence == models.ConfidenceLow {
		res.Skipped = true
		res.Reasons = append(res.Reasons, "confidence too low for a change suggestion")
		item := &models.RawSourceItem{
			AttemptID:        res.AttemptID,
			SourceSite:       res.Site,
			SourceURL:        rawURL,
			FetchedAt:        fetchedAt,
			HTTPStatus:       fr.StatusCode,
			ContentType:      fr.ContentType,
			Status:           "ok",
			ExtractionMethod: res.Method,
			Confidence:       res.Confidence,
			NormalizedData:   mustJSON(res.Prefill),
			Warnings:         mustJSON(res.Warnings),
			ErrorCode:        models.ErrLowConfidenceReject,
		}
		if err := p.store.InsertRawSourceItem(ctx, item); err != nil {
			p.log.Error("raw source item insert failed", zap.Error(err))
		}
		return
	}

	existing, err := p.matchEvent(ctx, fr.FinalURL, res.Prefill)
	if err != nil {
		p.log.Error("event match failed", zap.Error(err))
	}
	if existing != nil {
		res.MatchedEventID = &existing.ID
	}

	var (
		diff       []approval.FieldDiff
		hasPending bool
	)
	if existing != nil {
		diff = approval.CalculateDiff(res.Prefill, existing)
		hasPending, err = p.store.HasPendingSuggestionForTarget(ctx, existing.ID)
		if err != nil {
			p.log.Error("pending suggestion lookup failed", zap.Error(err))
			hasPending = true // fail safe: never auto-approve on an unknown state
		}
	}
	decision := p.engine.Decide(res.Confidence, diff, existing, hasPending)
	res.Reasons = append(res.Reasons, decision.Reasons...)

	item := &models.RawSourceItem{
		AttemptID:        res.AttemptID,
		SourceSite:       res.Site,
		SourceURL:        rawURL,
		FetchedAt:        fetchedAt,
		HTTPStatus:       fr.StatusCode,
		ContentType:      fr.ContentType,
		Status:           "ok",
		ExtractionMethod: res.Method,
		Confidence:       res.Confidence,
		NormalizedData:   mustJSON(res.Prefill),
		Warnings:         mustJSON(res.Warnings),
		MatchedEventID:   res.MatchedEventID,
	}
	if err := p.store.InsertRawSourceItem(ctx, item); err != nil {
		p.log.Error("raw source item insert failed", zap.Error(err))
	}

	if decision.Skip {
		res.Skipped = true
		return
	}

	s := &models.ChangeSuggestion{
		SuggestionType:    decision.Type,
		TargetEventID:     res.MatchedEventID,
		SuggestedData:     mustJSON(res.Prefill),
		Confidence:        res.Confidence,
		ConfidenceReasons: mustJSON(res.Reasons),
		DiffFields:        mustJSON(decision.DiffFields),
		DiffDetail:        mustJSON(diff),
		Status:            decision.Status,
		SourceSite:        res.Site,
		SourceURL:         fr.FinalURL,
	}
	if err := p.store.InsertSuggestion(ctx, s); err != nil {
		p.log.Error("suggestion insert failed", zap.Error(err))
		return
	}
	res.SuggestionID = &s.ID
	res.SuggestionStatus = s.Status
	metrics.Suggestions.WithLabelValues(string(s.SuggestionType), string(s.Status)).Inc()

	if s.Status == models.SuggestionApproved {
		p.applyApproved(ctx, res, s, existing, fr.FinalURL)
	}
}

// applyApproved writes an auto-approved update into the canonical event
// and marks the suggestion applied.
func (p *Pipeline) applyApproved(ctx context.Context, res *Result, s *models.ChangeSuggestion, existing *models.Event, sourceURL string) {
	ev := approval.ApplyToEvent(res.Prefill, existing, res.Site, sourceURL)
	if err := p.store.UpsertEvent(ctx, ev); err != nil {
		p.log.Error("event upsert failed", zap.Error(err))
		return
	}
	if err := approval.MarkApplied(s); err != nil {
		p.log.Error("mark applied failed", zap.Error(err))
		return
	}
	if err := p.store.SaveSuggestion(ctx, s); err != nil {
		p.log.Error("suggestion save failed", zap.Error(err))
		return
	}
	res.SuggestionStatus = s.Status
}

// ApplySuggestion writes an approved suggestion into the canonical event
// table and marks it applied. Used by the review API and by the scheduler's
// sweep over suggestions approved but not yet applied.
func (p *Pipeline) ApplySuggestion(ctx context.Context, s *models.ChangeSuggestion) error {
	if p.store == nil {
		return errors.New("no store attached")
	}
	var prefill models.PrefillData
	if err := json.Unmarshal(s.SuggestedData, &prefill); err != nil {
		return fmt.Errorf("suggestion %d data: %w", s.ID, err)
	}
	var existing *models.Event
	if s.TargetEventID != nil {
		var err error
		existing, err = p.store.GetEvent(ctx, *s.TargetEventID)
		if err != nil {
			return err
		}
	}
	ev := approval.ApplyToEvent(&prefill, existing, s.SourceSite, s.SourceURL)
	if err := p.store.UpsertEvent(ctx, ev); err != nil {
		return err
	}
	if err := approval.MarkApplied(s); err != nil {
		return err
	}
	return p.store.SaveSuggestion(ctx, s)
}

// matchEvent finds the stored event this candidate refers to: exact source
// URL first, then same title on the same day.
func (p *Pipeline) matchEvent(ctx context.Context, sourceURL string, prefill *models.PrefillData) (*models.Event, error) {
	ev, err := p.store.FindEventBySourceURL(ctx, sourceURL)
	if err != nil || ev != nil {
		return ev, err
	}
	if prefill.Title == "" {
		return nil, nil
	}
	return p.store.FindEventByTitleAndDate(ctx, prefill.Title, prefill.StartAt)
}

func mustJSON(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
