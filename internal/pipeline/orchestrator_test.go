package pipeline

import (
	"context"
	"errors"
	"testing"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/ports"
)

func testSource() domain.Source {
	return domain.Source{ID: 1, Name: "test-source", URL: "https://example.com/tenders"}
}

func testOrchestrator(classifier ports.Classifier, store *fakeStore, fallback ports.FallbackExtractor) *Orchestrator {
	o := NewOrchestrator(Deps{
		Classifier: classifier,
		Fetcher:    &fakeFetcher{},
		Store:      store,
		Detector:   NewDetector(store, nil, nil),
		Fallback:   fallback,
	}, Config{MaxDaysOld: 90, UrgentDaysThreshold: 7, EnableDateFiltering: true})
	o.now = fixedNow
	return o
}

func listingPage() ports.Page {
	return ports.Page{URL: "https://example.com/tenders", Text: "listing"}
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		candidates: []domain.CandidateTender{
			{Title: "Environmental audit tender", URL: "https://example.com/t/1", Date: "2026-06-01"},
			{Title: "Credit rating services", URL: "https://example.com/t/2", Date: "2026-06-05"},
			{Title: "Office chairs procurement tender", URL: "https://example.com/t/3"},
		},
		detail: domain.DetailExtraction{Title: "Detail", Deadline: "2026-07-01"},
	}
	store := newFakeStore()

	result, err := testOrchestrator(classifier, store, nil).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Counts.TotalFound != 3 {
		t.Fatalf("expected 3 found, got %d", result.Counts.TotalFound)
	}
	// The chairs tender has no keyword match and falls out at validation.
	if result.Counts.AfterDateFilter != 2 {
		t.Fatalf("expected 2 after date filter, got %d", result.Counts.AfterDateFilter)
	}
	if result.Counts.AfterDuplicateRemoval != 2 {
		t.Fatalf("expected 2 after dedup, got %d", result.Counts.AfterDuplicateRemoval)
	}
	if result.Counts.ProcessedByEnricher != 2 || result.Counts.SkippedByEnricher != 0 {
		t.Fatalf("unexpected enricher counts: %+v", result.Counts)
	}

	if len(store.saved) != 2 {
		t.Fatalf("expected 2 saved tenders, got %d", len(store.saved))
	}
	if len(store.details) != 2 {
		t.Fatalf("expected 2 saved details, got %d", len(store.details))
	}
	if store.saved[0].Category != domain.CategoryESG || store.saved[1].Category != domain.CategoryCreditRating {
		t.Fatalf("unexpected categories: %s / %s", store.saved[0].Category, store.saved[1].Category)
	}
}

func TestRunAllStreamKeepsFilteredOut(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		candidates: []domain.CandidateTender{
			{Title: "Fresh green tender", URL: "https://example.com/t/1", Date: "2026-06-01"},
			{Title: "Stale green tender", URL: "https://example.com/t/2", Date: "2025-01-01"},
		},
		detail: domain.DetailExtraction{Title: "Detail"},
	}
	store := newFakeStore()

	result, err := testOrchestrator(classifier, store, nil).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(result.All) != 2 {
		t.Fatalf("expected both tenders in the unfiltered stream, got %d", len(result.All))
	}
	if result.Counts.AfterDateFilter != 1 {
		t.Fatalf("expected 1 past the date gate, got %d", result.Counts.AfterDateFilter)
	}
	if len(result.Enriched) != 1 {
		t.Fatalf("expected 1 enriched, got %d", len(result.Enriched))
	}
	if result.Enriched[0].Tender.Title != "Fresh green tender" {
		t.Fatalf("wrong tender enriched: %s", result.Enriched[0].Tender.Title)
	}
}

func TestRunEmptyURLDefaultsToSource(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		candidates: []domain.CandidateTender{{Title: "Green tender"}},
		detail:     domain.DetailExtraction{Title: "Detail"},
	}
	store := newFakeStore()

	result, err := testOrchestrator(classifier, store, nil).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.All) != 1 || result.All[0].URL != "https://example.com/tenders" {
		t.Fatalf("expected source URL fallback, got %+v", result.All)
	}
}

func TestRunShortCircuitsWhenAllDuplicates(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		candidates: []domain.CandidateTender{
			{Title: "Green tender", URL: "https://example.com/t/1"},
		},
	}
	store := newFakeStore()
	store.existing["https://example.com/t/1"] = true

	result, err := testOrchestrator(classifier, store, nil).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Counts.Duplicates != 1 || result.Counts.AfterDuplicateRemoval != 0 {
		t.Fatalf("unexpected counts: %+v", result.Counts)
	}
	if classifier.detailCalls != 0 {
		t.Fatal("enricher must not run when nothing survives dedup")
	}
	if len(store.saved) != 0 {
		t.Fatal("nothing should be saved")
	}
}

func TestRunFallbackOnParseError(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		candidatesErr: &ports.ParseError{Reason: "not an array"},
		detail:        domain.DetailExtraction{Title: "Detail"},
	}
	fallback := &fakeFallback{
		candidates: []domain.CandidateTender{
			{Title: "Green tender from heuristics", URL: "https://example.com/t/1"},
		},
	}
	store := newFakeStore()

	result, err := testOrchestrator(classifier, store, fallback).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if !fallback.called {
		t.Fatal("expected fallback extraction")
	}
	if result.Counts.TotalFound != 1 || len(store.saved) != 1 {
		t.Fatalf("fallback candidates not processed: %+v", result.Counts)
	}
}

func TestRunTransportErrorPropagates(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{candidatesErr: errBoom}
	fallback := &fakeFallback{}
	store := newFakeStore()

	_, err := testOrchestrator(classifier, store, fallback).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected transport error to propagate, got %v", err)
	}
	if fallback.called {
		t.Fatal("fallback must not run on transport errors")
	}
}

func TestRunStoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		candidates: []domain.CandidateTender{{Title: "Green tender", URL: "https://example.com/t/1"}},
	}

	store := newFakeStore()
	store.existsErr = errBoom
	_, err := testOrchestrator(classifier, store, nil).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected duplicate-check error, got %v", err)
	}

	store = newFakeStore()
	store.saveErr = errBoom
	_, err = testOrchestrator(classifier, store, nil).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestRunFailedEnrichmentStillPersisted(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		candidates: []domain.CandidateTender{{Title: "Green tender", URL: "https://example.com/t/1"}},
		detailErr:  &ports.ParseError{Reason: "garbage"},
	}
	store := newFakeStore()

	result, err := testOrchestrator(classifier, store, nil).Run(
		context.Background(), testSource(), listingPage(), testESG, testCredit)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Counts.ProcessedByEnricher != 0 || result.Counts.SkippedByEnricher != 0 {
		t.Fatalf("failed enrichment must not count as processed or skipped: %+v", result.Counts)
	}
	if len(store.details) != 1 {
		t.Fatal("failed enrichment must still write its detail record")
	}
	for _, d := range store.details {
		if d.Status != domain.StatusFailed || d.Reason != "Failed to extract details" {
			t.Fatalf("unexpected detail record: %+v", d)
		}
	}
}

func TestRunCancelledBetweenCandidates(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		candidates: []domain.CandidateTender{{Title: "Green tender", URL: "https://example.com/t/1"}},
	}
	store := newFakeStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testOrchestrator(classifier, store, nil).Run(
		ctx, testSource(), listingPage(), testESG, testCredit)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
