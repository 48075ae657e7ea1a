package pipeline

import (
	"context"
	"log/slog"

	"tenderwatch/internal/dates"
	"tenderwatch/internal/domain"
	"tenderwatch/internal/ports"
)

// Failure reasons surfaced on detail records.
const (
	reasonScrapeFailed  = "Failed to scrape page"
	reasonExtractFailed = "Failed to extract details"
)

// Enricher drives one validated tender through detail-page fetch,
// classification and the detail-stage date gate. Every outcome, including
// failure, yields a populated detail record so persistence never sees a
// blank.
type Enricher struct {
	fetcher    ports.PageFetcher
	classifier ports.Classifier
	temporal   *TemporalFilter
	skipGate   bool
	logger     *slog.Logger
}

// NewEnricher builds an enricher. skipGate bypasses the date-validating stage
// for unfiltered runs.
func NewEnricher(fetcher ports.PageFetcher, classifier ports.Classifier, temporal *TemporalFilter, skipGate bool, logger *slog.Logger) *Enricher {
	return &Enricher{
		fetcher:    fetcher,
		classifier: classifier,
		temporal:   temporal,
		skipGate:   skipGate,
		logger:     logger,
	}
}

// Enrich runs the state machine for one tender. Failures are terminal for
// this tender only and never abort the surrounding run.
func (e *Enricher) Enrich(ctx context.Context, t domain.ValidatedTender) domain.EnrichedTender {
	page, err := e.fetcher.Fetch(ctx, t.URL)
	if err != nil {
		e.warn("detail fetch failed", "url", t.URL, "error", err)
		return e.failed(t, reasonScrapeFailed, "Detail page could not be scraped: "+err.Error())
	}

	extraction, err := e.classifier.ClassifyDetail(ctx, page.Text, t)
	if err != nil {
		e.warn("detail classification failed", "url", t.URL, "error", err)
		rec := e.failed(t, reasonExtractFailed, "Detail extraction failed: "+err.Error())
		rec.Detail.FullContent = page.Text
		return rec
	}

	detail := e.buildRecord(t, extraction)
	detail.FullContent = page.Text
	detail.Urgency = e.temporal.Urgency(detail.Deadline)

	if !e.skipGate {
		if skip, reason := e.temporal.CheckDetail(detail); skip {
			detail.Status = domain.StatusSkipped
			detail.Reason = reason
			e.debug("detail gate skipped tender", "title", t.Title, "reason", reason)
			return domain.EnrichedTender{Tender: t, Detail: detail, Status: domain.StatusSkipped}
		}
	}

	detail.Status = domain.StatusCompleted
	return domain.EnrichedTender{Tender: t, Detail: detail, Status: domain.StatusCompleted}
}

// buildRecord converts raw classifier output into a typed record, parsing
// dates fail-open: an unreadable date is dropped, never fatal.
func (e *Enricher) buildRecord(t domain.ValidatedTender, x domain.DetailExtraction) domain.DetailRecord {
	rec := domain.DetailRecord{
		Title:        x.Title,
		Description:  x.Description,
		Requirements: x.Requirements,
		Contact:      x.Contact,
		Additional:   x.Additional,
	}
	if rec.Title == "" {
		rec.Title = t.Title
	}

	if d, err := dates.Parse(x.Deadline); err == nil {
		day := dates.Day(d)
		rec.Deadline = &day
	}
	if d, err := dates.Parse(x.PublicationDate); err == nil {
		day := dates.Day(d)
		rec.PublicationDate = &day
	}
	return rec
}

// failed builds the degraded record for a terminal fetch or classify error.
func (e *Enricher) failed(t domain.ValidatedTender, reason, note string) domain.EnrichedTender {
	return domain.EnrichedTender{
		Tender: t,
		Detail: domain.DetailRecord{
			Title:       t.Title,
			Description: note,
			Urgency:     domain.UrgencyUnknown,
			Status:      domain.StatusFailed,
			Reason:      reason,
		},
		Status: domain.StatusFailed,
	}
}

func (e *Enricher) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Enricher) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
