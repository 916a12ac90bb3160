package ingest

import (
	"encoding/json"
	"strings"

	"github.com/webcomponents/catalog/pkg/catalog"
)

// registryDescriptor is the subset of the registry's package document
// this package reads (§6): GET /:scope/:package returns
// {repository:{url}|"o/r", license, versions:{<tag>:{gitHead,readmeFilename}}}.
type registryDescriptor struct {
	Repository json.RawMessage                 `json:"repository"`
	License    string                          `json:"license"`
	Versions   map[string]registryVersionEntry `json:"versions"`
}

// registryVersionEntry is one entry of a registry descriptor's versions
// map: the git commit a published version was cut from, plus the name
// of its README file within the published tarball.
type registryVersionEntry struct {
	GitHead        string `json:"gitHead"`
	ReadmeFilename string `json:"readmeFilename"`
}

// isRegistryScope reports whether scope names a registry-sourced
// library: a scoped package ("@scope") or the reserved unscoped
// registry ("@@npm"), per §3.
func isRegistryScope(scope string) bool {
	return strings.HasPrefix(scope, "@")
}

// registryPackageName composes the name the registry API expects from
// a library's (scope, package) pair.
func registryPackageName(scope, pkg string) string {
	if scope == catalog.RegistryScope {
		return pkg
	}
	return scope + "/" + pkg
}

// parseRegistryTagMap builds tag_map = version -> git commit from a
// registry descriptor's versions dictionary, the registry-sourced
// element's tag-discovery source (§4.5).
func parseRegistryTagMap(body []byte) ([]catalog.TagCommit, registryDescriptor, error) {
	var rd registryDescriptor
	if err := json.Unmarshal(body, &rd); err != nil {
		return nil, rd, err
	}
	out := make([]catalog.TagCommit, 0, len(rd.Versions))
	for v, entry := range rd.Versions {
		out = append(out, catalog.TagCommit{Tag: v, Commit: entry.GitHead})
	}
	return out, rd, nil
}
