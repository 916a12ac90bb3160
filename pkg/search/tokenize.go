package search

import (
	"regexp"
	"strings"
)

// camelBoundary matches the start of a capitalized word run, the same
// split point util.py's tokenise_more used to break "AndyMutton" into
// "Andy", "Mutton".
var camelBoundary = regexp.MustCompile(`[A-Z][a-z]`)

// TokeniseCamelCase splits a CamelCase identifier into its constituent
// words, e.g. "PaperButton" -> ["Paper", "Button"].
func TokeniseCamelCase(s string) []string {
	spaced := camelBoundary.ReplaceAllStringFunc(s, func(m string) string {
		return " " + m
	})
	return strings.Fields(spaced)
}

// GeneratePrefixes returns every three-character-or-longer prefix of s,
// excluding the full string itself (it is indexed directly elsewhere).
// Strings shorter than four characters yield no prefixes.
func GeneratePrefixes(s string) []string {
	if len(s) < 4 {
		return nil
	}
	runes := []rune(s)
	all := make([]string, 0, len(runes))
	var b strings.Builder
	for _, r := range runes {
		b.WriteRune(r)
		all = append(all, b.String())
	}
	// skip the first two (too short to be useful) and the last (the
	// full word, already indexed).
	return all[2 : len(all)-1]
}

// GeneratePrefixesFromList builds the deduplicated prefix_matches set
// for a list of words: each word is tokenised on CamelCase boundaries,
// and every resulting token plus the original word contributes its
// prefixes.
func GeneratePrefixesFromList(words []string) []string {
	seen := make(map[string]struct{})
	for _, word := range words {
		tokens := append(TokeniseCamelCase(word), word)
		for _, token := range tokens {
			for _, prefix := range GeneratePrefixes(strings.ToLower(token)) {
				seen[prefix] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}
