package pipeline

import (
	"testing"

	"tenderwatch/internal/domain"
)

func TestValidateRejectsNoMatches(t *testing.T) {
	t.Parallel()

	v := NewValidator(testESG, testCredit, nil)
	_, ok := v.Validate(domain.CandidateTender{
		Title:           "Catering services for head office",
		Description:     "Supply of lunches",
		Category:        domain.CategoryESG,
		ClaimedKeywords: []string{"esg"},
	})
	if ok {
		t.Fatal("expected rejection when text has no keyword matches")
	}
}

func TestValidateIgnoresClassifierClaims(t *testing.T) {
	t.Parallel()

	v := NewValidator(testESG, testCredit, nil)
	got, ok := v.Validate(domain.CandidateTender{
		Title:       "Credit rating services and financial audit",
		Description: "Annual creditworthiness assessment",
		// Classifier claims esg; the text says otherwise.
		Category:        domain.CategoryESG,
		ClaimedKeywords: []string{"green"},
	})
	if !ok {
		t.Fatal("expected acceptance")
	}
	if got.Category != domain.CategoryCreditRating {
		t.Fatalf("expected credit_rating from text, got %s", got.Category)
	}
	for _, kw := range got.MatchedKeywords {
		if kw == "green" {
			t.Fatal("claimed keyword leaked into matches")
		}
	}
}

func TestValidateTieGoesToESG(t *testing.T) {
	t.Parallel()

	v := NewValidator(testESG, testCredit, nil)
	got, ok := v.Validate(domain.CandidateTender{
		Title: "Environmental review and credit rating services",
	})
	if !ok {
		t.Fatal("expected acceptance")
	}
	if got.ESGCount != 1 || got.CreditCount != 1 {
		t.Fatalf("expected 1/1 counts, got %d/%d", got.ESGCount, got.CreditCount)
	}
	if got.Category != domain.CategoryESG {
		t.Fatalf("expected tie to resolve to esg, got %s", got.Category)
	}
}

func TestValidateUsesTitleAndDescription(t *testing.T) {
	t.Parallel()

	v := NewValidator(testESG, testCredit, nil)
	got, ok := v.Validate(domain.CandidateTender{
		Title:       "Consulting tender",
		Description: "Scope covers sustainability reporting and green finance",
	})
	if !ok {
		t.Fatal("expected acceptance from description matches")
	}
	if got.ESGCount != 2 {
		t.Fatalf("expected 2 esg matches, got %d", got.ESGCount)
	}
	if got.DateStatus != domain.DateStatusUnknown {
		t.Fatalf("expected initial date status unknown, got %s", got.DateStatus)
	}
}

func TestValidateKeepsRawDate(t *testing.T) {
	t.Parallel()

	v := NewValidator(testESG, testCredit, nil)
	got, ok := v.Validate(domain.CandidateTender{
		Title: "Green energy tender",
		Date:  "sometime in spring",
	})
	if !ok {
		t.Fatal("expected acceptance")
	}
	if got.RawDate != "sometime in spring" {
		t.Fatalf("raw date not preserved: %q", got.RawDate)
	}
}
