package keyword

import (
	"regexp"
	"strings"
)

// stem suffixes in check order; a stem only counts when more than three
// characters survive the strip.
var stemSuffixes = []string{"ing", "ed", "s"}

// Match reports which keywords occur in text. A keyword counts when its
// lower-cased form appears as a substring, when its simple stem appears as a
// substring, or when it matches at a word boundary. The three strategies are
// a union; a keyword is reported at most once, in list order, with the
// original casing from the keyword list.
func Match(text string, keywords []string) []string {
	textLower := strings.ToLower(text)

	var matches []string
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kwLower := strings.ToLower(strings.TrimSpace(kw))
		if kwLower == "" {
			continue
		}
		if _, dup := seen[kwLower]; dup {
			continue
		}
		if matchesKeyword(textLower, kwLower) {
			seen[kwLower] = struct{}{}
			matches = append(matches, kw)
		}
	}
	return matches
}

func matchesKeyword(textLower, kwLower string) bool {
	if strings.Contains(textLower, kwLower) {
		return true
	}

	if s := stem(kwLower); len(s) > 3 && strings.Contains(textLower, s) {
		return true
	}

	// Keywords may carry regex metacharacters; escape before compiling.
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(kwLower) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(textLower)
}

func stem(kw string) string {
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(kw, suffix) {
			return strings.TrimSuffix(kw, suffix)
		}
	}
	return kw
}
