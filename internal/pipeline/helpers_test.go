package pipeline

import (
	"context"
	"errors"
	"time"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/ports"
)

// Fixed clock for deterministic date math: 15 June 2026.
var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newTestFilter(passThrough bool) *TemporalFilter {
	f := NewTemporalFilter(90, 7, passThrough)
	f.now = fixedNow
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeClassifier struct {
	candidates    []domain.CandidateTender
	candidatesErr error
	detail        domain.DetailExtraction
	detailErr     error
	detailCalls   int
}

func (f *fakeClassifier) ClassifyCandidates(_ context.Context, _ string, _, _ []string) ([]domain.CandidateTender, error) {
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	return f.candidates, nil
}

func (f *fakeClassifier) ClassifyDetail(_ context.Context, _ string, _ domain.ValidatedTender) (domain.DetailExtraction, error) {
	f.detailCalls++
	if f.detailErr != nil {
		return domain.DetailExtraction{}, f.detailErr
	}
	return f.detail, nil
}

type fakeFetcher struct {
	pages map[string]ports.Page
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (ports.Page, error) {
	if f.err != nil {
		return ports.Page{}, f.err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return ports.Page{URL: url, Text: "detail page for " + url}, nil
}

type fakeStore struct {
	existing   map[string]bool // keyed by title or url
	existsErr  error
	saveErr    error
	detailErr  error
	saved      []domain.ValidatedTender
	details    map[int64]domain.DetailRecord
	nextID     int64
	savedByURL map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing:   map[string]bool{},
		details:    map[int64]domain.DetailRecord{},
		savedByURL: map[string]int64{},
	}
}

func (f *fakeStore) Exists(_ context.Context, title, url string, _ int64) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[title] || f.existing[url], nil
}

func (f *fakeStore) SaveTender(_ context.Context, _ int64, t domain.ValidatedTender) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.nextID++
	f.saved = append(f.saved, t)
	f.savedByURL[t.URL] = f.nextID
	return f.nextID, nil
}

func (f *fakeStore) SaveDetail(_ context.Context, tenderID int64, d domain.DetailRecord) (int64, error) {
	if f.detailErr != nil {
		return 0, f.detailErr
	}
	f.details[tenderID] = d
	return tenderID, nil
}

type fakeSeen struct {
	keys map[string]bool
	err  error
}

func newFakeSeen() *fakeSeen {
	return &fakeSeen{keys: map[string]bool{}}
}

func (f *fakeSeen) Seen(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.keys[key], nil
}

func (f *fakeSeen) MarkSeen(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	f.keys[key] = true
	return nil
}

type fakeFallback struct {
	candidates []domain.CandidateTender
	called     bool
}

func (f *fakeFallback) Extract(_ ports.Page, _, _ []string) []domain.CandidateTender {
	f.called = true
	return f.candidates
}

var errBoom = errors.New("boom")

var (
	testESG    = []string{"environmental", "sustainability", "green", "esg"}
	testCredit = []string{"credit rating", "financial audit", "creditworthiness"}
)
