package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/ports"
)

// Config carries the per-run pipeline thresholds and switches. It is passed
// in explicitly at construction; the pipeline reads no ambient state.
type Config struct {
	MaxDaysOld          int
	UrgentDaysThreshold int
	// EnableDateFiltering switches both temporal gates. When false the run
	// is a pass-through: every validated tender survives the listing gate
	// and the enricher skips date validation.
	EnableDateFiltering bool
}

// Deps wires the collaborators the orchestrator sequences.
type Deps struct {
	Classifier ports.Classifier
	Fetcher    ports.PageFetcher
	Store      ports.TenderStore
	Detector   *Detector
	Fallback   ports.FallbackExtractor
	Logger     *slog.Logger
}

// Orchestrator sequences classification, validation, temporal filtering,
// deduplication and enrichment into a single run over one monitored source.
type Orchestrator struct {
	classifier ports.Classifier
	fetcher    ports.PageFetcher
	store      ports.TenderStore
	detector   *Detector
	fallback   ports.FallbackExtractor
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator constructs the pipeline for a fixed configuration.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	return &Orchestrator{
		classifier: deps.Classifier,
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		detector:   deps.Detector,
		fallback:   deps.Fallback,
		cfg:        cfg,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Run processes one source page. The classification call happens once; the
// unfiltered "all tenders" stream and the filtered stream are both derived
// from it and both reported. Store failures propagate; empty results do not.
func (o *Orchestrator) Run(ctx context.Context, source domain.Source, page ports.Page, esgKeywords, creditKeywords []string) (domain.RunResult, error) {
	result := domain.RunResult{Source: source}

	candidates, err := o.classify(ctx, page, esgKeywords, creditKeywords)
	if err != nil {
		return result, err
	}
	result.Counts.TotalFound = len(candidates)

	validator := NewValidator(esgKeywords, creditKeywords, o.logger)

	var validated []domain.ValidatedTender
	for _, c := range candidates {
		if c.URL == "" {
			c.URL = source.URL
		}
		if v, ok := validator.Validate(c); ok {
			validated = append(validated, v)
		}
	}

	// Unfiltered stream: listing gate in pass-through, so date statuses are
	// stamped but nothing is dropped.
	allGate := o.newFilter(true)
	for i := range validated {
		t := validated[i]
		allGate.CheckListing(&t)
		result.All = append(result.All, t)
	}

	// Filtered stream.
	listGate := o.newFilter(!o.cfg.EnableDateFiltering)
	var filtered []domain.ValidatedTender
	for i := range validated {
		t := validated[i]
		if listGate.CheckListing(&t) {
			filtered = append(filtered, t)
		}
	}
	result.Counts.AfterDateFilter = len(filtered)

	var fresh []domain.ValidatedTender
	for _, t := range filtered {
		dup, err := o.detector.IsDuplicate(ctx, t.Title, t.URL, source.ID)
		if err != nil {
			return result, fmt.Errorf("check duplicate for %s: %w", t.URL, err)
		}
		if dup {
			result.Counts.Duplicates++
			continue
		}
		fresh = append(fresh, t)
	}
	result.Counts.AfterDuplicateRemoval = len(fresh)

	if len(fresh) == 0 {
		o.info("no new tenders after deduplication, skipping enrichment",
			"source", source.Name,
			"total_found", result.Counts.TotalFound,
			"duplicates", result.Counts.Duplicates)
		return result, nil
	}

	ids := make([]int64, len(fresh))
	for i, t := range fresh {
		id, err := o.store.SaveTender(ctx, source.ID, t)
		if err != nil {
			return result, fmt.Errorf("save tender %s: %w", t.URL, err)
		}
		ids[i] = id
		o.detector.Remember(ctx, t.Title, t.URL, source.ID)
	}

	enricher := NewEnricher(o.fetcher, o.classifier, listGate, !o.cfg.EnableDateFiltering, o.logger)
	for i, t := range fresh {
		// Abort between candidates only; in-flight work runs to completion.
		if err := ctx.Err(); err != nil {
			return result, err
		}

		enriched := enricher.Enrich(ctx, t)
		switch enriched.Status {
		case domain.StatusCompleted:
			result.Counts.ProcessedByEnricher++
		case domain.StatusSkipped:
			result.Counts.SkippedByEnricher++
		}

		if _, err := o.store.SaveDetail(ctx, ids[i], enriched.Detail); err != nil {
			return result, fmt.Errorf("save detail for tender %d: %w", ids[i], err)
		}
		result.Enriched = append(result.Enriched, enriched)
	}

	o.info("run completed",
		"source", source.Name,
		"total_found", result.Counts.TotalFound,
		"after_date_filter", result.Counts.AfterDateFilter,
		"after_duplicate_removal", result.Counts.AfterDuplicateRemoval,
		"processed", result.Counts.ProcessedByEnricher,
		"skipped", result.Counts.SkippedByEnricher)

	return result, nil
}

// classify invokes the external classifier and falls back to deterministic
// page heuristics when its output fails shape validation. Transport and other
// unexpected errors propagate.
func (o *Orchestrator) classify(ctx context.Context, page ports.Page, esg, credit []string) ([]domain.CandidateTender, error) {
	candidates, err := o.classifier.ClassifyCandidates(ctx, page.Text, esg, credit)
	if err == nil {
		return candidates, nil
	}

	var parseErr *ports.ParseError
	if !errors.As(err, &parseErr) {
		return nil, fmt.Errorf("classify candidates: %w", err)
	}

	if o.fallback == nil {
		o.warn("classifier output unusable and no fallback configured", "reason", parseErr.Reason)
		return nil, nil
	}

	o.warn("classifier output unusable, using heuristic extraction", "reason", parseErr.Reason)
	return o.fallback.Extract(page, esg, credit), nil
}

func (o *Orchestrator) newFilter(passThrough bool) *TemporalFilter {
	f := NewTemporalFilter(o.cfg.MaxDaysOld, o.cfg.UrgentDaysThreshold, passThrough)
	f.now = o.now
	return f
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
