package domain

import "time"

// Category names one of the two keyword taxonomies. A tender always carries
// exactly one category; there is no combined value.
type Category string

const (
	CategoryESG          Category = "esg"
	CategoryCreditRating Category = "credit_rating"
)

// DateStatus records the outcome of the listing-stage date gate.
type DateStatus string

const (
	DateStatusRecent  DateStatus = "recent"
	DateStatusUnknown DateStatus = "unknown"
	DateStatusError   DateStatus = "error"
)

// Urgency classifies deadline proximity for a detail record.
type Urgency string

const (
	UrgencyExpired Urgency = "expired"
	UrgencyUrgent  Urgency = "urgent"
	UrgencyHigh    Urgency = "high"
	UrgencyMedium  Urgency = "medium"
	UrgencyLow     Urgency = "low"
	UrgencyUnknown Urgency = "unknown"
)

// ProcessingStatus is the terminal state of detail enrichment.
type ProcessingStatus string

const (
	StatusCompleted ProcessingStatus = "completed"
	StatusSkipped   ProcessingStatus = "skipped"
	StatusFailed    ProcessingStatus = "failed"
)

// CandidateTender is the classifier's raw output for one detected
// opportunity. Category and ClaimedKeywords come from the classifier and are
// never trusted; validation re-derives both.
type CandidateTender struct {
	Title           string
	URL             string
	Date            string // raw date text, may be empty or unparseable
	Category        Category
	Description     string
	ClaimedKeywords []string
}

// ValidatedTender is a candidate that passed keyword validation, with the
// category re-derived from actual text content.
type ValidatedTender struct {
	Title           string
	URL             string
	RawDate         string
	PublishedAt     *time.Time
	Category        Category
	Description     string
	MatchedKeywords []string
	ESGCount        int
	CreditCount     int
	DateStatus      DateStatus
}

// StoredTender is a validated tender as read back from the store.
type StoredTender struct {
	ID int64
	ValidatedTender
}

// ContactInfo holds contact details extracted from a detail page.
type ContactInfo struct {
	Organization string
	Person       string
	Phone        string
	Email        string
	Address      string
}

// DetailExtraction is the classifier's raw detail-page output. Dates are kept
// as strings; the enricher parses them fail-open.
type DetailExtraction struct {
	Title           string
	Description     string
	Requirements    string
	PublicationDate string
	Deadline        string
	Contact         ContactInfo
	Additional      string
}

// DetailRecord is the finalized enrichment output for one validated tender.
// Reason is set iff Status is not completed.
type DetailRecord struct {
	Title           string
	Description     string
	Requirements    string
	PublicationDate *time.Time
	Deadline        *time.Time
	Contact         ContactInfo
	Additional      string
	Urgency         Urgency
	Status          ProcessingStatus
	Reason          string
	FullContent     string
}

// EnrichedTender pairs a validated tender with its detail record and the
// terminal enrichment status.
type EnrichedTender struct {
	Tender ValidatedTender
	Detail DetailRecord
	Status ProcessingStatus
}

// RunCounts aggregates per-stage totals for one pipeline run.
type RunCounts struct {
	TotalFound            int
	AfterDateFilter       int
	AfterDuplicateRemoval int
	Duplicates            int
	ProcessedByEnricher   int
	SkippedByEnricher     int
}

// RunResult is the outcome of one orchestrator invocation over one source.
// All carries the unfiltered stream for consumers that want every validated
// tender regardless of dates; Enriched carries the filtered, deduplicated,
// enriched stream.
type RunResult struct {
	Source   Source
	All      []ValidatedTender
	Enriched []EnrichedTender
	Counts   RunCounts
}

// Source is one monitored listing page.
type Source struct {
	ID          int64
	Name        string
	URL         string
	Active      bool
	LastCrawled time.Time
}

// CrawlLog records the outcome of one crawl of one source.
type CrawlLog struct {
	SourceID     int64
	Status       string // "success" or "failed"
	TendersFound int
	Error        string
	At           time.Time
}
