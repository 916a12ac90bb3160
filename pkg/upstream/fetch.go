package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

var tracer = otel.Tracer("catalog/upstream")

// Status classifies the outcome of a conditional-GET upstream fetch.
type Status int

const (
	StatusOk Status = iota
	StatusNotModified
	StatusNotFound
	StatusForbidden
	StatusServerError
)

// FetchResult is the sum type every upstream call resolves to: exactly
// one successful body, or one of the four non-2xx outcomes a handler
// must branch on (§4.3).
type FetchResult struct {
	Status Status
	Body   []byte
	ETag   string

	// RateLimitRemaining mirrors the X-RateLimit-Remaining response
	// header when the upstream sends one; -1 if absent.
	RateLimitRemaining int
}

// Quota reports the upstream's request allowance at the moment of the
// call. SourceHostClient.Quota fills only Remaining.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

type client struct {
	http  *http.Client
	base  string
	token oauth2.TokenSource
}

func newClient(base, accessToken string, timeout time.Duration) *client {
	var ts oauth2.TokenSource
	if accessToken != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	}
	return &client{
		http: &http.Client{Timeout: timeout},
		base: base,
		token: ts,
	}
}

// doRequest issues req, classifies the response into a FetchResult, and
// records a span following the teacher's postgres.go tracing pattern:
// named span, request attributes, RecordError+SetStatus on failure.
func (c *client) doRequest(ctx context.Context, spanName string, req *http.Request, etag string) (FetchResult, error) {
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
		),
	)
	defer span.End()

	req = req.WithContext(ctx)
	if c.token != nil {
		tok, err := c.token.Token()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to obtain token")
			return FetchResult{}, fmt.Errorf("upstream: failed to obtain token: %w", err)
		}
		tok.SetAuthHeader(req)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return FetchResult{}, fmt.Errorf("upstream: request failed: %w", err)
	}
	defer resp.Body.Close()

	remaining := -1
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		fmt.Sscanf(v, "%d", &remaining)
	}
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("upstream.ratelimit_remaining", remaining),
	)

	result := FetchResult{ETag: resp.Header.Get("ETag"), RateLimitRemaining: remaining}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		result.Status = StatusNotModified
		span.SetStatus(codes.Ok, "not modified")
		return result, nil
	case resp.StatusCode == http.StatusNotFound:
		result.Status = StatusNotFound
		span.SetStatus(codes.Ok, "not found")
		return result, nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		result.Status = StatusForbidden
		span.SetStatus(codes.Error, "quota exceeded")
		return result, nil
	case resp.StatusCode >= 500:
		result.Status = StatusServerError
		span.SetStatus(codes.Error, "upstream server error")
		return result, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read body")
			return FetchResult{}, fmt.Errorf("upstream: failed to read body: %w", err)
		}
		result.Status = StatusOk
		result.Body = body
		span.SetStatus(codes.Ok, "fetched")
		return result, nil
	default:
		span.SetStatus(codes.Error, "unexpected status")
		return FetchResult{}, fmt.Errorf("upstream: unexpected status %d", resp.StatusCode)
	}
}
