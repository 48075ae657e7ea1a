package pipeline

import (
	"strings"
	"time"

	"tenderwatch/internal/dates"
	"tenderwatch/internal/domain"
)

const (
	defaultMaxDaysOld = 90
	defaultUrgentDays = 7

	// Fixed urgency band edges beyond the configurable urgent threshold.
	highDays   = 30
	mediumDays = 90
)

// TemporalFilter applies the listing-stage and detail-stage date gates. Both
// gates fail open on unparseable dates: an unreadable date never rejects a
// tender on its own.
type TemporalFilter struct {
	maxDaysOld  int
	urgentDays  int
	passThrough bool
	now         func() time.Time
}

// NewTemporalFilter builds a filter with the given day thresholds.
// passThrough disables both gates entirely for unfiltered runs.
func NewTemporalFilter(maxDaysOld, urgentDays int, passThrough bool) *TemporalFilter {
	if maxDaysOld <= 0 {
		maxDaysOld = defaultMaxDaysOld
	}
	if urgentDays <= 0 {
		urgentDays = defaultUrgentDays
	}
	return &TemporalFilter{
		maxDaysOld:  maxDaysOld,
		urgentDays:  urgentDays,
		passThrough: passThrough,
		now:         time.Now,
	}
}

// CheckListing applies the listing-stage gate in place, parsing the raw
// announcement date and stamping the date status. It returns false only when
// a parseable date is older than the max-age threshold.
func (f *TemporalFilter) CheckListing(t *domain.ValidatedTender) bool {
	if raw := strings.TrimSpace(t.RawDate); raw != "" {
		if parsed, err := dates.Parse(raw); err == nil {
			day := dates.Day(parsed)
			t.PublishedAt = &day
		} else {
			t.DateStatus = domain.DateStatusError
			return true
		}
	}

	if t.PublishedAt == nil {
		t.DateStatus = domain.DateStatusUnknown
		return true
	}

	if f.passThrough {
		t.DateStatus = domain.DateStatusRecent
		return true
	}

	if dates.DaysBetween(*t.PublishedAt, f.now()) > f.maxDaysOld {
		return false
	}
	t.DateStatus = domain.DateStatusRecent
	return true
}

// CheckDetail applies the detail-stage gate to an enrichment record. It never
// mutates the record; a skipped tender keeps its fully populated details.
func (f *TemporalFilter) CheckDetail(d domain.DetailRecord) (skip bool, reason string) {
	if f.passThrough {
		return false, ""
	}

	today := dates.Day(f.now())

	if d.Deadline != nil && d.Deadline.Before(today) {
		return true, "expired"
	}

	if d.Deadline == nil && d.PublicationDate != nil &&
		dates.DaysBetween(*d.PublicationDate, today) > f.maxDaysOld {
		return true, "too old"
	}

	return false, ""
}

// Urgency derives the deadline-proximity level. A missing deadline is
// non-blocking and reported as unknown.
func (f *TemporalFilter) Urgency(deadline *time.Time) domain.Urgency {
	if deadline == nil {
		return domain.UrgencyUnknown
	}

	days := dates.DaysBetween(dates.Day(f.now()), *deadline)
	switch {
	case days < 0:
		return domain.UrgencyExpired
	case days <= f.urgentDays:
		return domain.UrgencyUrgent
	case days <= highDays:
		return domain.UrgencyHigh
	case days <= mediumDays:
		return domain.UrgencyMedium
	default:
		return domain.UrgencyLow
	}
}
