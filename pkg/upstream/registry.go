package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// RegistryClient talks to an npm-shaped package registry: package
// metadata (including the dist-tags and versions map) and per-version
// manifests.
type RegistryClient struct {
	c *client
}

// NewRegistryClient constructs a client against baseURL (e.g.
// "https://registry.npmjs.org").
func NewRegistryClient(baseURL, accessToken string) *RegistryClient {
	return &RegistryClient{c: newClient(baseURL, accessToken, 30*time.Second)}
}

// GetPackage fetches the full package document (all versions, dist-tags).
func (c *RegistryClient) GetPackage(ctx context.Context, name, etag string) (FetchResult, error) {
	req, err := http.NewRequest(http.MethodGet, c.c.base+"/"+name, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("upstream: failed to build request: %w", err)
	}
	return c.c.doRequest(ctx, "Registry.GetPackage", req, etag)
}

// GetVersion fetches a single version's manifest.
func (c *RegistryClient) GetVersion(ctx context.Context, name, version, etag string) (FetchResult, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/%s/%s", c.c.base, name, version), nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("upstream: failed to build request: %w", err)
	}
	return c.c.doRequest(ctx, "Registry.GetVersion", req, etag)
}
