package ports

import (
	"context"
	"time"

	"tenderwatch/internal/domain"
)

// Page is one fetched page, kept in both raw and readable form. Text is the
// markdown rendering used for classification; HTML feeds the deterministic
// fallback extractor.
type Page struct {
	URL  string
	HTML string
	Text string
}

// PageFetcher downloads a page and reduces it to extractable text.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// ParseError marks classifier output that failed shape validation at the
// boundary. Callers distinguish it from transport errors to decide whether a
// deterministic fallback applies.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "classifier output malformed: " + e.Reason
}

// Classifier is the pluggable text-classification capability. Its output is
// structurally validated by the adapter but its category and keyword claims
// are always re-derived by the pipeline.
type Classifier interface {
	ClassifyCandidates(ctx context.Context, pageText string, esgKeywords, creditKeywords []string) ([]domain.CandidateTender, error)
	ClassifyDetail(ctx context.Context, pageText string, basic domain.ValidatedTender) (domain.DetailExtraction, error)
}

// FallbackExtractor derives candidates from page content without the
// classifier, used when classification output is unusable.
type FallbackExtractor interface {
	Extract(page Page, esgKeywords, creditKeywords []string) []domain.CandidateTender
}

// TenderStore is the minimal persistence contract the pipeline consumes.
type TenderStore interface {
	Exists(ctx context.Context, title, url string, sourceID int64) (bool, error)
	SaveTender(ctx context.Context, sourceID int64, t domain.ValidatedTender) (int64, error)
	SaveDetail(ctx context.Context, tenderID int64, d domain.DetailRecord) (int64, error)
}

// SourceStore manages the monitored-page registry and crawl history.
type SourceStore interface {
	ActiveSources(ctx context.Context) ([]domain.Source, error)
	EnsureSource(ctx context.Context, url, name string) (domain.Source, error)
	TouchSource(ctx context.Context, id int64, at time.Time) error
	LogCrawl(ctx context.Context, entry domain.CrawlLog) error
}

// NotificationStore tracks which tenders still need to go out.
type NotificationStore interface {
	UnnotifiedTenders(ctx context.Context, category domain.Category) ([]domain.StoredTender, error)
	MarkNotified(ctx context.Context, tenderID int64) error
}

// KeywordStore supplies taxonomy keyword lists, fixed for the duration of a
// run.
type KeywordStore interface {
	Keywords(ctx context.Context, taxonomy domain.Category) ([]string, error)
	SeedKeywords(ctx context.Context, taxonomy domain.Category, keywords []string) error
}

// SeenCache is an optional fast-path consulted before the authoritative
// duplicate lookup. A cache miss or error never decides anything on its own.
type SeenCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string) error
}

// Notifier delivers a category's digest to its stakeholder team.
type Notifier interface {
	NotifyTeam(ctx context.Context, category domain.Category, tenders []domain.StoredTender) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
