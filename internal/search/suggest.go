package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MinSuggestLength     = 2
	DefaultSuggestLimit  = 5
	MaxSuggestCategories = 5
	MaxSuggestKeywords   = 5
	// MaxKeywordTitles bounds how many matching titles feed keyword extraction.
	MaxKeywordTitles = 50
)

// Suggestion is a lightweight product hit for type-ahead.
type Suggestion struct {
	ID       string  `json:"_id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

type Suggestions struct {
	Products   []Suggestion `json:"products"`
	Categories []string     `json:"categories"`
	Keywords   []string     `json:"keywords"`
}

func EmptySuggestions() Suggestions {
	return Suggestions{Products: []Suggestion{}, Categories: []string{}, Keywords: []string{}}
}

// Suggestible reports whether a partial query is long enough to look up.
func Suggestible(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinSuggestLength
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "this": {}, "that": {},
	"are": {}, "was": {}, "you": {}, "your": {}, "our": {}, "its": {}, "has": {},
	"have": {}, "not": {}, "but": {}, "all": {}, "any": {}, "can": {}, "new": {},
	"used": {}, "set": {}, "per": {}, "off": {}, "out": {}, "only": {}, "very": {},
	"good": {}, "great": {}, "like": {}, "sale": {}, "item": {}, "condition": {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Tokens splits a title into lowercase keyword candidates: non-alphanumerics
// stripped, longer than two characters, stopwords removed.
func Tokens(title string) []string {
	fields := strings.Fields(strings.ToLower(title))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := nonAlnum.ReplaceAllString(f, "")
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Keywords returns up to n of the most frequent tokens across titles. Ties
// keep first-seen order.
func Keywords(titles []string, n int) []string {
	counts := map[string]int{}
	order := make([]string, 0)
	for _, t := range titles {
		for _, tok := range Tokens(t) {
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}
	slices.SortStableFunc(order, func(a, b string) int { return cmp.Compare(counts[b], counts[a]) })
	if n >= 0 && len(order) > n {
		order = order[:n]
	}
	return order
}
