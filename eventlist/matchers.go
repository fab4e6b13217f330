package eventlist

import (
	"strings"
)

// TextMatchMode selects how a filter term is matched against an element's text.
type TextMatchMode uint8

const (
	// TextContains matches a term anywhere in the text.
	TextContains TextMatchMode = iota

	// TextStartsWith matches a term at the beginning of the text.
	TextStartsWith
)

// TextExtractor returns the strings of an element that text filtering looks at.
type TextExtractor[E any] func(e E) []string

// SplitTerms splits a filter string into whitespace-separated terms.
func SplitTerms(filter string) []string {
	return strings.Fields(filter)
}

// TextPredicate matches elements for which every term is found, case-insensitively, in at least
// one of the strings extract returns. No terms match everything.
func TextPredicate[E any](terms []string, mode TextMatchMode, extract TextExtractor[E]) Predicate[E] {
	lowered := make([]string, 0, len(terms))
	for _, term := range terms {
		if term != "" {
			lowered = append(lowered, strings.ToLower(term))
		}
	}

	if len(lowered) == 0 {
		return func(E) bool { return true }
	}

	match := strings.Contains
	if mode == TextStartsWith {
		match = strings.HasPrefix
	}

	return func(e E) bool {
		raw := extract(e)
		texts := make([]string, len(raw))
		for i, text := range raw {
			texts[i] = strings.ToLower(text)
		}

	nextTerm:
		for _, term := range lowered {
			for _, text := range texts {
				if match(text, term) {
					continue nextTerm
				}
			}

			return false
		}

		return true
	}
}
