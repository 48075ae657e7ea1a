package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/keyword"
	"tenderwatch/internal/ports"
)

// maxFallbackCandidates caps how many heuristic hits one page can yield.
const maxFallbackCandidates = 10

// tenderTerms mark a line or link as a probable tender announcement. The
// Russian stems cover the regional procurement portals being monitored.
var tenderTerms = []string{
	"tender", "procurement", "rfp", "request for proposal", "bid",
	"тендер", "закупк", "конкурс", "котировк", "аукцион",
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{2}[./]\d{2}[./]\d{4}`),
	regexp.MustCompile(`\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}`),
}

// HeuristicExtractor recovers tender candidates from a page without the
// classifier: anchor tags whose text looks like an announcement, then a line
// scan of the page text. Results still pass through keyword validation, so
// over-extraction here is cheap.
type HeuristicExtractor struct{}

var _ ports.FallbackExtractor = (*HeuristicExtractor)(nil)

// NewHeuristicExtractor builds the extractor. It is stateless.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Extract scans the page for probable announcements. Candidates without a
// matched keyword from either list are dropped up front.
func (x *HeuristicExtractor) Extract(page ports.Page, esgKeywords, creditKeywords []string) []domain.CandidateTender {
	all := append(append([]string{}, esgKeywords...), creditKeywords...)

	candidates := x.fromLinks(page, all)
	candidates = append(candidates, x.fromLines(page, all)...)

	candidates = dedupeByTitle(candidates)
	if len(candidates) > maxFallbackCandidates {
		candidates = candidates[:maxFallbackCandidates]
	}
	return candidates
}

// fromLinks walks anchor tags whose visible text mentions a tender term and a
// monitored keyword.
func (x *HeuristicExtractor) fromLinks(page ports.Page, keywords []string) []domain.CandidateTender {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil
	}

	base, _ := url.Parse(page.URL)

	var out []domain.CandidateTender
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) < 10 || !hasTenderTerm(text) {
			return
		}
		matched := keyword.Match(strings.ToLower(text), keywords)
		if len(matched) == 0 {
			return
		}

		href, _ := sel.Attr("href")
		out = append(out, domain.CandidateTender{
			Title:           text,
			URL:             resolveHref(base, href),
			Date:            findDate(text),
			Description:     text,
			ClaimedKeywords: matched,
		})
	})
	return out
}

// fromLines scans the plain text line by line, pulling a small context window
// around each hit as the description.
func (x *HeuristicExtractor) fromLines(page ports.Page, keywords []string) []domain.CandidateTender {
	lines := strings.Split(page.Text, "\n")

	var out []domain.CandidateTender
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) < 10 || !hasTenderTerm(line) {
			continue
		}
		matched := keyword.Match(strings.ToLower(line), keywords)
		if len(matched) == 0 {
			continue
		}

		window := contextWindow(lines, i, 2)
		out = append(out, domain.CandidateTender{
			Title:           line,
			Date:            findDate(window),
			Description:     window,
			ClaimedKeywords: matched,
		})
	}
	return out
}

func hasTenderTerm(s string) bool {
	low := strings.ToLower(s)
	for _, term := range tenderTerms {
		if strings.Contains(low, term) {
			return true
		}
	}
	return false
}

func findDate(s string) string {
	for _, p := range datePatterns {
		if m := p.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

func contextWindow(lines []string, center, radius int) string {
	start := center - radius
	if start < 0 {
		start = 0
	}
	end := center + radius + 1
	if end > len(lines) {
		end = len(lines)
	}

	parts := make([]string, 0, end-start)
	for _, l := range lines[start:end] {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func dedupeByTitle(in []domain.CandidateTender) []domain.CandidateTender {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.CandidateTender, 0, len(in))
	for _, c := range in {
		key := strings.ToLower(strings.TrimSpace(c.Title))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
