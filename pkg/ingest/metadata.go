package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/webcomponents/catalog/pkg/catalog"
)

// repoMetadata is the subset of the source host's repo document this
// package reads; the rest passes through untouched as lib.Metadata.Body.
type repoMetadata struct {
	License *struct {
		SpdxID string `json:"spdx_id"`
	} `json:"license"`
}

// manifest is the subset of the default-branch bower.json/package.json
// this package reads: license and keywords feed library-level
// resolution, pages drives the per-version documentation-page fetch.
type manifest struct {
	Main     interface{}       `json:"main"`
	License  string            `json:"license"`
	Keywords []string          `json:"keywords"`
	Pages    map[string]string `json:"pages"`
}

func parseManifest(body []byte) (manifest, error) {
	var m manifest
	err := json.Unmarshal(body, &m)
	return m, err
}

// resolveLicense resolves the SPDX identifier in precedence order
// (§4.5): the repo descriptor's license.spdx_id, then the
// default-branch manifest's license field, then the registry
// descriptor's license field. The first allowlisted candidate wins;
// callers pass nil for whichever bodies don't apply to a library's
// scope.
func resolveLicense(repoBody, manifestBody, registryBody []byte, allow catalog.SPDXAllowlist) (string, bool) {
	if id := repoSPDX(repoBody); id != "" && allow.Validate(id) {
		return id, true
	}
	if mf, err := parseManifest(manifestBody); err == nil && mf.License != "" && allow.Validate(mf.License) {
		return mf.License, true
	}
	if id := registrySPDX(registryBody); id != "" && allow.Validate(id) {
		return id, true
	}
	return "", false
}

func repoSPDX(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var m repoMetadata
	if err := json.Unmarshal(body, &m); err != nil || m.License == nil {
		return ""
	}
	return m.License.SpdxID
}

func registrySPDX(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var rd registryDescriptor
	if err := json.Unmarshal(body, &rd); err != nil {
		return ""
	}
	return rd.License
}

// resolveKind decides element vs collection from the default-branch
// manifest's keywords list (§4.5): "element-collection" marks a
// Collection; everything else, including a missing or unparseable
// manifest, defaults to Element.
func resolveKind(manifestBody []byte) catalog.Kind {
	mf, err := parseManifest(manifestBody)
	if err != nil {
		return catalog.KindElement
	}
	for _, kw := range mf.Keywords {
		if kw == "element-collection" {
			return catalog.KindCollection
		}
	}
	return catalog.KindElement
}

// sourceTag is one entry of the source host's tags listing.
type sourceTag struct {
	Name   string `json:"name"`
	Commit struct {
		Sha string `json:"sha"`
	} `json:"commit"`
}

// parseTags decodes the source host's tags response into TagCommits,
// preserving upstream order (newest first).
func parseTags(body []byte) ([]catalog.TagCommit, error) {
	var tags []sourceTag
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, err
	}
	out := make([]catalog.TagCommit, 0, len(tags))
	for _, t := range tags {
		out = append(out, catalog.TagCommit{Tag: t.Name, Commit: t.Commit.Sha})
	}
	return out, nil
}

// masterRefDoc is the source host's "git ref" document shape, read to
// detect default-branch HEAD movement for collection libraries.
type masterRefDoc struct {
	Object struct {
		Sha string `json:"sha"`
	} `json:"object"`
}

// parseMasterRefSha extracts the commit id a master ref document points
// at, failing if the document carries no object.sha.
func parseMasterRefSha(body []byte) (string, error) {
	var ref masterRefDoc
	if err := json.Unmarshal(body, &ref); err != nil {
		return "", err
	}
	if ref.Object.Sha == "" {
		return "", fmt.Errorf("ingest: master ref response missing object.sha")
	}
	return ref.Object.Sha, nil
}

// parseRepositoryField extracts github owner/repo from a registry
// descriptor's "repository" field (§6), which upstream represents
// either as a bare "owner/repo" string or as {"url": "..."} naming a
// github-shaped git remote.
func parseRepositoryField(body []byte) (owner, repo string, ok bool) {
	var rd registryDescriptor
	if err := json.Unmarshal(body, &rd); err != nil || len(rd.Repository) == 0 {
		return "", "", false
	}
	var asString string
	if err := json.Unmarshal(rd.Repository, &asString); err == nil {
		return splitOwnerRepo(asString)
	}
	var asObject struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(rd.Repository, &asObject); err == nil {
		return splitOwnerRepo(asObject.URL)
	}
	return "", "", false
}

// splitOwnerRepo pulls "owner", "repo" out of a bare "owner/repo" or a
// github git/http(s) remote URL.
func splitOwnerRepo(raw string) (owner, repo string, ok bool) {
	s := strings.TrimSuffix(raw, ".git")
	s = strings.TrimPrefix(s, "git+")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "git://github.com/", "git@github.com:"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
