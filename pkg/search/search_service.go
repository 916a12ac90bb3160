package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var searchTracer = otel.Tracer("catalog/search/service")

// SearchService answers filtered full-text queries over search_documents.
type SearchService struct {
	db     *sql.DB
	parser *QueryParser
}

// NewSearchService constructs a SearchService.
func NewSearchService(db *sql.DB) *SearchService {
	return &SearchService{db: db, parser: NewQueryParser()}
}

// Request is a search request.
type Request struct {
	Query  string
	Limit  int
	Offset int
}

// Result is one search_documents row matched by a query.
type Result struct {
	LibraryID   string  `json:"library_id"`
	Owner       string  `json:"owner"`
	GithubOwner string  `json:"github_owner"`
	Repo        string  `json:"repo"`
	Kind        string  `json:"kind"`
	Version     string  `json:"version"`
	Description string  `json:"description"`
	Rank        float64 `json:"rank"`
	TextRank    float64 `json:"text_rank"`
}

// Response wraps a page of search results.
type Response struct {
	Results     []Result     `json:"results"`
	TotalCount  int          `json:"total_count"`
	Query       string       `json:"query"`
	ParsedQuery *ParsedQuery `json:"-"`
}

// Search runs a filtered free-text query against search_documents.
func (s *SearchService) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, span := searchTracer.Start(ctx, "Search", trace.WithAttributes(
		attribute.String("query", req.Query),
		attribute.Int("limit", req.Limit),
		attribute.Int("offset", req.Offset),
	))
	defer span.End()

	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 1000 {
		req.Limit = 1000
	}

	parsed := s.parser.Parse(req.Query)
	span.SetAttributes(attribute.Bool("has_filters", parsed.HasFilters()))

	query, args := s.buildQuery(parsed, req.Limit, req.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execute search")
		return nil, fmt.Errorf("search: executing query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, req.Limit)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.LibraryID, &r.Owner, &r.GithubOwner, &r.Repo, &r.Kind, &r.Version, &r.Description, &r.Rank, &r.TextRank); err != nil {
			span.RecordError(err)
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: reading results: %w", err)
	}

	span.SetStatus(codes.Ok, fmt.Sprintf("%d results", len(results)))
	return &Response{Results: results, TotalCount: len(results), Query: req.Query, ParsedQuery: parsed}, nil
}

func (s *SearchService) buildQuery(q *ParsedQuery, limit, offset int) (string, []interface{}) {
	var where []string
	var args []interface{}
	argN := 0
	bind := func(v interface{}) string {
		argN++
		args = append(args, v)
		return fmt.Sprintf("$%d", argN)
	}

	textRankExpr := "1.0"
	if tsq := q.ToTsQuery(); tsq != "" {
		tsqArg := bind(tsq)
		where = append(where, fmt.Sprintf("search_vector @@ to_tsquery('english', %s)", tsqArg))
		textRankExpr = fmt.Sprintf("ts_rank(search_vector, to_tsquery('english', %s))", tsqArg)
	}
	if q.Kind != "" {
		where = append(where, fmt.Sprintf("kind = %s", bind(q.Kind)))
	}
	if q.Owner != "" {
		where = append(where, fmt.Sprintf("(owner = %s OR github_owner = %s)", bind(q.Owner), bind(q.Owner)))
	}
	if q.Version != "" {
		where = append(where, fmt.Sprintf("version = %s", bind(q.Version)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT library_id, owner, github_owner, repo, kind, version, description, rank,
			%s AS text_rank
		FROM search_documents
		%s
		ORDER BY text_rank DESC, rank DESC
		LIMIT %s OFFSET %s
	`, textRankExpr, whereClause, bind(limit), bind(offset))

	return query, args
}
