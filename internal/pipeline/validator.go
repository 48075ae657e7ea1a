package pipeline

import (
	"log/slog"
	"strings"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/keyword"
)

// Validator re-derives keyword matches from a candidate's actual text and
// assigns the final category. Classifier claims about keywords or category
// are ignored entirely.
type Validator struct {
	esg    []string
	credit []string
	logger *slog.Logger
}

// NewValidator fixes the two taxonomy keyword lists for a run.
func NewValidator(esg, credit []string, logger *slog.Logger) *Validator {
	return &Validator{esg: esg, credit: credit, logger: logger}
}

// Validate checks one candidate against both taxonomies. ok is false when
// neither list matches the candidate's title or description.
//
// A term present in both taxonomies counts toward both totals. Equal non-zero
// counts resolve to esg.
func (v *Validator) Validate(c domain.CandidateTender) (domain.ValidatedTender, bool) {
	corpus := strings.ToLower(c.Title + " " + c.Description)

	esgMatches := keyword.Match(corpus, v.esg)
	creditMatches := keyword.Match(corpus, v.credit)

	if len(esgMatches)+len(creditMatches) == 0 {
		v.debug("candidate rejected, no keyword matches", "title", c.Title)
		return domain.ValidatedTender{}, false
	}

	category := domain.CategoryESG
	if len(creditMatches) > len(esgMatches) {
		category = domain.CategoryCreditRating
	}

	validated := domain.ValidatedTender{
		Title:           strings.TrimSpace(c.Title),
		URL:             strings.TrimSpace(c.URL),
		RawDate:         c.Date,
		Category:        category,
		Description:     strings.TrimSpace(c.Description),
		MatchedKeywords: unionKeywords(esgMatches, creditMatches),
		ESGCount:        len(esgMatches),
		CreditCount:     len(creditMatches),
		DateStatus:      domain.DateStatusUnknown,
	}

	v.debug("candidate validated",
		"title", validated.Title,
		"category", validated.Category,
		"esg_matches", validated.ESGCount,
		"credit_matches", validated.CreditCount)

	return validated, true
}

// unionKeywords merges the two match sets, collapsing terms shared across
// taxonomies case-insensitively.
func unionKeywords(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, kw := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		union = append(union, kw)
	}
	return union
}

func (v *Validator) debug(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Debug(msg, args...)
	}
}
