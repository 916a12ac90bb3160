package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// UnpkgClient fetches raw file bodies (most importantly README.md) for
// registry-sourced libraries from a CDN that serves package contents by
// name@version/path, since the registry document itself carries no file
// bodies.
type UnpkgClient struct {
	c *client
}

// NewUnpkgClient constructs a client against baseURL (e.g.
// "https://unpkg.com").
func NewUnpkgClient(baseURL string) *UnpkgClient {
	return &UnpkgClient{c: newClient(baseURL, "", 30*time.Second)}
}

// GetFile fetches path within name@version, e.g. GetFile(ctx, "lit", "2.0.0", "README.md", "").
func (c *UnpkgClient) GetFile(ctx context.Context, name, version, path, etag string) (FetchResult, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/%s@%s/%s", c.c.base, name, version, path), nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("upstream: failed to build request: %w", err)
	}
	return c.c.doRequest(ctx, "Unpkg.GetFile", req, etag)
}
