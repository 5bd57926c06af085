package approval

import (
	"errors"
	"fmt"
	"time"

	"stagecrawl/internal/models"
)

// ErrIllegalTransition is returned for any move the suggestion state
// machine does not allow; applied and rejected are terminal.
var ErrIllegalTransition = errors.New("illegal suggestion state transition")

// FieldDiff records one changed field with its old and new values so every
// decision stays explainable after the fact.
type FieldDiff struct {
	Field string `json:"field"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

// Decision is the approval engine's verdict for one candidate.
type Decision struct {
	Type       models.SuggestionType
	Status     models.SuggestionStatus
	Skip       bool
	DiffFields []string
	Reasons    []string
}

// Engine holds the auto-approval policy. LowRisk is configuration, not
// structural logic: which fields are safe to apply without a human.
type Engine struct {
	lowRisk map[string]struct{}
}

func NewEngine(lowRiskFields []string) *Engine {
	m := make(map[string]struct{}, len(lowRiskFields))
	for _, f := range lowRiskFields {
		m[f] = struct{}{}
	}
	return &Engine{lowRisk: m}
}

// CalculateDiff produces the field-level diff between a candidate and the
// stored event it matched. A nil existing event means the candidate is new
// and the diff is empty.
func CalculateDiff(candidate *models.PrefillData, existing *models.Event) []FieldDiff {
	if candidate == nil || existing == nil {
		return nil
	}
	var diffs []FieldDiff
	add := func(field string, old, new any, changed bool) {
		if changed {
			diffs = append(diffs, FieldDiff{Field: field, Old: old, New: new})
		}
	}

	add("title", existing.Title, candidate.Title,
		candidate.Title != "" && candidate.Title != existing.Title)
	add("startAt", existing.StartAt, candidate.StartAt,
		candidate.StartAt != nil && !timesEqual(candidate.StartAt, existing.StartAt))
	add("endAt", existing.EndAt, candidate.EndAt,
		candidate.EndAt != nil && !timesEqual(candidate.EndAt, existing.EndAt))
	add("venueName", existing.VenueName, candidate.VenueName,
		candidate.VenueName != "" && candidate.VenueName != existing.VenueName)
	add("venueAddress", existing.VenueAddress, candidate.VenueAddress,
		candidate.VenueAddress != "" && candidate.VenueAddress != existing.VenueAddress)
	add("eventType", existing.EventType, candidate.EventType,
		candidate.EventType != "" && candidate.EventType != existing.EventType)
	add("posterUrl", existing.PosterURL, candidate.PosterURL,
		candidate.PosterURL != "" && candidate.PosterURL != existing.PosterURL)
	add("description", existing.Description, candidate.Description,
		candidate.Description != "" && candidate.Description != existing.Description)

	newPrice := candidate.Price
	oldPrice := existing.Price
	priceChanged := newPrice != nil && (oldPrice == nil || !newPrice.Equal(*oldPrice))
	add("price", oldPrice, newPrice, priceChanged)

	return diffs
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Decide routes a candidate: auto-approve only when confidence is high,
// every changed field is on the low-risk allowlist, and no pending
// suggestion already targets the same event. Everything else queues for
// manual review; nothing is silently discarded.
func (e *Engine) Decide(confidence models.Confidence, diff []FieldDiff, existing *models.Event, hasPendingForTarget bool) Decision {
	d := Decision{Status: models.SuggestionPending}

	if existing == nil {
		d.Type = models.SuggestionNew
		d.Reasons = append(d.Reasons, "no matching stored event; new events require review")
		return d
	}

	d.Type = models.SuggestionUpdate
	for _, f := range diff {
		d.DiffFields = append(d.DiffFields, f.Field)
	}

	if len(diff) == 0 {
		d.Skip = true
		d.Reasons = append(d.Reasons, "no field differs from the stored event")
		return d
	}
	if confidence != models.ConfidenceHigh {
		d.Reasons = append(d.Reasons, fmt.Sprintf("confidence %s below auto-approval bar", confidence))
		return d
	}
	if hasPendingForTarget {
		d.Reasons = append(d.Reasons, "a pending suggestion already targets this event")
		return d
	}
	for _, f := range diff {
		if _, ok := e.lowRisk[f.Field]; !ok {
			d.Reasons = append(d.Reasons, fmt.Sprintf("field %q is outside the low-risk allowlist", f.Field))
			return d
		}
	}

	d.Status = models.SuggestionApproved
	d.Reasons = append(d.Reasons, "high confidence and only low-risk fields changed")
	return d
}

// State machine. All transitions for a ChangeSuggestion funnel through
// these helpers; a rejected or applied suggestion is never mutated again.

func Approve(s *models.ChangeSuggestion, reviewer, notes string, now time.Time) error {
	if s.Status != models.SuggestionPending {
		return fmt.Errorf("%w: %s -> approved", ErrIllegalTransition, s.Status)
	}
	s.Status = models.SuggestionApproved
	s.ReviewedBy = reviewer
	s.ReviewedAt = &now
	s.ReviewNotes = notes
	return nil
}

func Reject(s *models.ChangeSuggestion, reviewer, notes string, now time.Time) error {
	if s.Status != models.SuggestionPending {
		return fmt.Errorf("%w: %s -> rejected", ErrIllegalTransition, s.Status)
	}
	s.Status = models.SuggestionRejected
	s.ReviewedBy = reviewer
	s.ReviewedAt = &now
	s.ReviewNotes = notes
	return nil
}

func MarkApplied(s *models.ChangeSuggestion) error {
	if s.Status != models.SuggestionApproved {
		return fmt.Errorf("%w: %s -> applied", ErrIllegalTransition, s.Status)
	}
	s.Status = models.SuggestionApplied
	return nil
}

// ApplyToEvent folds a candidate into a canonical event record, only
// overwriting with known values. Returns the event to upsert.
func ApplyToEvent(prefill *models.PrefillData, existing *models.Event, site models.Site, sourceURL string) *models.Event {
	ev := existing
	if ev == nil {
		ev = &models.Event{}
	}
	if prefill.Title != "" {
		ev.Title = prefill.Title
	}
	if prefill.StartAt != nil {
		ev.StartAt = prefill.StartAt
	}
	if prefill.EndAt != nil {
		ev.EndAt = prefill.EndAt
	}
	if prefill.VenueName != "" {
		ev.VenueName = prefill.VenueName
	}
	if prefill.VenueAddress != "" {
		ev.VenueAddress = prefill.VenueAddress
	}
	if prefill.EventType != "" {
		ev.EventType = prefill.EventType
	}
	if prefill.PosterURL != "" {
		ev.PosterURL = prefill.PosterURL
	}
	if prefill.Price != nil {
		ev.Price = prefill.Price
	}
	if prefill.Description != "" {
		ev.Description = prefill.Description
	}
	ev.SourceSite = site
	ev.SourceURL = sourceURL
	return ev
}
