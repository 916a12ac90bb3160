package upstream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SourceHostClient talks to a GitHub-shaped source-hosting REST API: repo
// metadata, tags, contributors, README, and arbitrary file contents at a
// ref. Every call is a conditional GET keyed on the caller-supplied etag.
type SourceHostClient struct {
	c *client
}

// NewSourceHostClient constructs a client against baseURL (e.g.
// "https://api.github.com"), using accessToken as a bearer token when set.
func NewSourceHostClient(baseURL, accessToken string) *SourceHostClient {
	return &SourceHostClient{c: newClient(baseURL, accessToken, 30*time.Second)}
}

func (c *SourceHostClient) get(ctx context.Context, spanName, path, etag string) (FetchResult, error) {
	req, err := http.NewRequest(http.MethodGet, c.c.base+path, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("upstream: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	return c.c.doRequest(ctx, spanName, req, etag)
}

// GetRepo fetches "/repos/{owner}/{repo}" metadata.
func (c *SourceHostClient) GetRepo(ctx context.Context, owner, repo, etag string) (FetchResult, error) {
	return c.get(ctx, "SourceHost.GetRepo", fmt.Sprintf("/repos/%s/%s", owner, repo), etag)
}

// GetTags fetches "/repos/{owner}/{repo}/tags".
func (c *SourceHostClient) GetTags(ctx context.Context, owner, repo, etag string) (FetchResult, error) {
	return c.get(ctx, "SourceHost.GetTags", fmt.Sprintf("/repos/%s/%s/tags", owner, repo), etag)
}

// GetContributors fetches "/repos/{owner}/{repo}/contributors".
func (c *SourceHostClient) GetContributors(ctx context.Context, owner, repo, etag string) (FetchResult, error) {
	return c.get(ctx, "SourceHost.GetContributors", fmt.Sprintf("/repos/%s/%s/contributors", owner, repo), etag)
}

// GetStats fetches "/repos/{owner}/{repo}/stats/participation".
func (c *SourceHostClient) GetStats(ctx context.Context, owner, repo, etag string) (FetchResult, error) {
	return c.get(ctx, "SourceHost.GetStats", fmt.Sprintf("/repos/%s/%s/stats/participation", owner, repo), etag)
}

// GetReadme fetches the raw README at the given ref (tag or sha).
func (c *SourceHostClient) GetReadme(ctx context.Context, owner, repo, ref, etag string) (FetchResult, error) {
	return c.get(ctx, "SourceHost.GetReadme", fmt.Sprintf("/repos/%s/%s/readme?ref=%s", owner, repo, ref), etag)
}

// GetFile fetches an arbitrary file's content at the given ref — used
// both for the bower/package manifest and for optional documentation
// pages named in that manifest.
func (c *SourceHostClient) GetFile(ctx context.Context, owner, repo, ref, path, etag string) (FetchResult, error) {
	return c.get(ctx, "SourceHost.GetFile", fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", owner, repo, path, ref), etag)
}

// GetMasterRef fetches "/repos/{owner}/{repo}/git/refs/heads/master",
// used to detect default-branch HEAD movement for collection libraries,
// which have no tags of their own to enumerate.
func (c *SourceHostClient) GetMasterRef(ctx context.Context, owner, repo, etag string) (FetchResult, error) {
	return c.get(ctx, "SourceHost.GetMasterRef", fmt.Sprintf("/repos/%s/%s/git/refs/heads/master", owner, repo), etag)
}

// GetUser fetches "/users/{name}" profile metadata, used to refresh an
// Author entity (the catalog treats orgs and users identically here;
// the source host's /users endpoint resolves both).
func (c *SourceHostClient) GetUser(ctx context.Context, name, etag string) (FetchResult, error) {
	return c.get(ctx, "SourceHost.GetUser", fmt.Sprintf("/users/%s", name), etag)
}

// RenderMarkdown submits markdown for server-side HTML rendering,
// running InlineDemoTransform on it first so demo snippets that the
// source repo wrapped in an HTML comment (to hide them from the source
// host's own README preview) still render on the catalog's pages.
func (c *SourceHostClient) RenderMarkdown(ctx context.Context, markdown string) (FetchResult, error) {
	body := fmt.Sprintf(`{"text":%q}`, InlineDemoTransform(markdown))
	req, err := http.NewRequest(http.MethodPost, c.c.base+"/markdown", strings.NewReader(body))
	if err != nil {
		return FetchResult{}, fmt.Errorf("upstream: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.c.doRequest(ctx, "SourceHost.RenderMarkdown", req, "")
}

// Quota fetches the caller's current rate-limit allowance.
func (c *SourceHostClient) Quota(ctx context.Context) (Quota, error) {
	result, err := c.get(ctx, "SourceHost.Quota", "/rate_limit", "")
	if err != nil {
		return Quota{}, err
	}
	if result.Status != StatusOk {
		return Quota{}, fmt.Errorf("upstream: unexpected status fetching quota")
	}
	return Quota{Remaining: result.RateLimitRemaining}, nil
}
