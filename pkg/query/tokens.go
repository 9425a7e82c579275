package query

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "for": {}, "from": {},
	"in": {}, "me": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "who": {}, "with": {}, "do": {}, "i": {}, "know": {},
	"works": {}, "work": {}, "working": {}, "people": {}, "person": {},
	"anyone": {}, "someone": {}, "met": {}, "knows": {},
}

// entityTokens pulls likely entity mentions out of a query: quoted phrases
// first, then capitalized runs ("Acme Corp" stays one token), then plain
// non-stopword tokens as a fallback so short lowercase queries still hit
// the keyword funnel.
func entityTokens(query string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	add := func(tok string) {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if len(tok) < 2 {
			return
		}
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	rest := query
	for {
		start := strings.IndexByte(rest, '"')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start+1:], '"')
		if end < 0 {
			break
		}
		add(rest[start+1 : start+1+end])
		rest = rest[start+1+end+1:]
	}

	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '@'
	})

	// Capitalized runs; the run breaks on any lowercase word.
	var run []string
	flush := func() {
		if len(run) > 0 {
			add(strings.Join(run, " "))
			run = nil
		}
	}
	for _, w := range words {
		r := []rune(w)
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			run = append(run, w)
			continue
		}
		flush()
	}
	flush()

	for _, w := range words {
		lw := strings.ToLower(w)
		if _, stop := stopwords[lw]; stop {
			continue
		}
		add(lw)
	}
	return tokens
}
