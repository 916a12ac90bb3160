package search

import (
	"regexp"
	"strings"
)

// filterPattern matches key:value or key:"quoted value" tokens.
var filterPattern = regexp.MustCompile(`([\w-]+):("([^"]+)"|(\S+))`)

// ParsedQuery is a search query string split into free-text terms and
// the recognized key:value filters (spec.md §4.8's extension of the
// teacher's filter syntax with kind:, version:, owner:).
type ParsedQuery struct {
	Terms []string

	Kind    string
	Owner   string
	Version string

	Raw string
}

// QueryParser parses the search query syntax.
type QueryParser struct{}

// NewQueryParser constructs a QueryParser.
func NewQueryParser() *QueryParser {
	return &QueryParser{}
}

// Parse splits queryStr into free-text terms and filters.
func (p *QueryParser) Parse(queryStr string) *ParsedQuery {
	q := &ParsedQuery{Raw: queryStr}

	for _, match := range filterPattern.FindAllStringSubmatch(queryStr, -1) {
		key := strings.ToLower(match[1])
		value := match[3]
		if value == "" {
			value = match[4]
		}
		switch key {
		case "kind":
			q.Kind = value
		case "owner":
			q.Owner = value
		case "version":
			q.Version = value
		default:
			// Unrecognized filter key: treat the whole token as a term.
			q.Terms = append(q.Terms, match[1]+":"+value)
		}
	}

	clean := strings.TrimSpace(filterPattern.ReplaceAllString(queryStr, ""))
	if clean != "" {
		q.Terms = append(q.Terms, strings.Fields(clean)...)
	}

	return q
}

// HasFilters reports whether the query carries any key:value filter.
func (q *ParsedQuery) HasFilters() bool {
	return q.Kind != "" || q.Owner != "" || q.Version != ""
}

// ToTsQuery converts the free-text terms into a PostgreSQL tsquery
// string, ANDing terms together with prefix matching on each.
func (q *ParsedQuery) ToTsQuery() string {
	parts := make([]string, 0, len(q.Terms))
	for _, term := range q.Terms {
		sanitized := sanitizeTsQueryTerm(term)
		if sanitized != "" {
			parts = append(parts, sanitized)
		}
	}
	return strings.Join(parts, " & ")
}

func sanitizeTsQueryTerm(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	term = strings.ReplaceAll(term, "'", "''")
	if term == "&" || term == "|" || term == "!" || term == "<->" {
		return ""
	}
	if !strings.HasSuffix(term, ":*") {
		term += ":*"
	}
	return term
}
