package common

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// NormalizeValue collapses whitespace so that trivially different spellings
// of the same identifier or object land on the same key.
func NormalizeValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

// NormalizeKey lowercases a normalized value. Identity lookups and assertion
// signatures compare on this form.
func NormalizeKey(value string) string {
	return strings.ToLower(NormalizeValue(value))
}

// NormalizeName strips punctuation and collapses case so that name
// similarity compares the words people actually typed.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// AssertionSignature is the dedup key for an assertion within one person.
// Two observations of the same fact collapse onto one signature.
func AssertionSignature(predicate, object string) string {
	return fmt.Sprintf("%s|%s", predicate, NormalizeKey(object))
}

// TrigramSimilarity returns the Jaccard similarity of the character
// trigram sets of two normalized names, in [0, 1]. It mirrors what
// pg_trgm's similarity() computes so the in-memory store and the
// database agree on candidate ranking.
func TrigramSimilarity(a, b string) float64 {
	a = NormalizeName(a)
	b = NormalizeName(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(s) {
		// pg_trgm pads each word with two leading and one trailing blank.
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			set[padded[i:i+3]] = struct{}{}
		}
	}
	return set
}

// EdgeWeight maps an edge's evidence count to a weight in (0, 1] that
// grows quickly for the first few observations and saturates.
func EdgeWeight(evidenceCount int) float64 {
	if evidenceCount <= 0 {
		return 0
	}
	return 1 - math.Exp(-float64(evidenceCount)/3)
}
