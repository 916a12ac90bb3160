package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
)

// epoch is the fixed reference point doc.rank is computed against
// (spec.md §4.8 step 6); only relative ordering matters.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrNoDefaultVersion is returned by BuildDocument when the library's
// VersionCache is empty.
var ErrNoDefaultVersion = errors.New("search: library has no default version")

// Document is the full-text search record for one library at its
// default version (spec.md §4.8 steps 4-6).
type Document struct {
	LibraryID string

	Owner       string
	GithubOwner string
	Repo        string
	Kind        catalog.Kind
	Version     string

	GithubDescription string
	Description        string
	Keywords           []string

	PrefixMatches []string

	Element  string
	Behavior string

	WeightedFields string
	Rank           float64

	// Dependencies is the bower manifest's raw dependency map
	// ("name" -> "owner/repo#range"), used by the indexer to populate
	// CollectionReference edges for collection-kind libraries.
	Dependencies map[string]string
}

type repoMetadataDoc struct {
	Description string `json:"description"`
}

type manifestDoc struct {
	Description  string            `json:"description"`
	Keywords     []string          `json:"keywords"`
	Dependencies map[string]string `json:"dependencies"`
}

type registryMetadataDoc struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// analyzerElement/analyzerBehavior/analyzerDoc decode the current
// analyzer schema (spec.md §4.8 step 4).
type analyzerElement struct {
	TagName   string `json:"tagname"`
	ClassName string `json:"classname"`
}

type analyzerDoc struct {
	Elements []analyzerElement `json:"elements"`
	Metadata struct {
		Polymer struct {
			Behaviors []struct {
				Name string `json:"name"`
			} `json:"behaviors"`
		} `json:"polymer"`
	} `json:"metadata"`
}

// legacyAnalysisDoc decodes the pre-analyzerData schema still present
// on older analysis content.
type legacyAnalysisDoc struct {
	ElementsByTagName map[string]json.RawMessage `json:"elementsByTagName"`
	BehaviorsByName    map[string]json.RawMessage `json:"behaviorsByName"`
}

// BuildDocument resolves the default version, loads the manifest,
// library and analysis content for it, and assembles the weighted
// search document. Returns (nil, nil) when the library is shadowed by
// a registry successor (npm_package set) — spec.md §4.8 step 3 — which
// callers must treat as "nothing to index", not a failure.
func BuildDocument(ctx context.Context, store storage.Store, owner, repo string) (*Document, error) {
	id := catalog.ID(owner, repo)

	lib, err := store.GetLibrary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("search: loading library %s: %w", id, err)
	}
	if lib.NpmPackage != "" {
		return nil, nil
	}

	cache, err := store.GetVersionCache(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("search: loading version cache for %s: %w", id, err)
	}
	version := cache.DefaultVersion()
	if version == "" {
		return nil, ErrNoDefaultVersion
	}

	doc := &Document{
		LibraryID:   id,
		Owner:       lib.Scope,
		GithubOwner: lib.GithubOwner,
		Repo:        lib.GithubRepo,
		Kind:        lib.Kind,
		Version:     version,
	}

	var repoMeta repoMetadataDoc
	json.Unmarshal(lib.Metadata.Body, &repoMeta)
	doc.GithubDescription = repoMeta.Description

	var manifest manifestDoc
	if bower, err := store.GetContent(ctx, id, version, catalog.ContentBower); err == nil {
		json.Unmarshal(bower.BodyJSON, &manifest)
	}
	doc.Dependencies = manifest.Dependencies

	var registry registryMetadataDoc
	json.Unmarshal(lib.RegistryMetadata.Body, &registry)

	doc.Description = manifest.Description
	if doc.Description == "" {
		doc.Description = registry.Description
	}

	doc.Keywords = manifest.Keywords
	if len(doc.Keywords) == 0 {
		doc.Keywords = registry.Keywords
	}

	words := append(strings.Fields(repoMeta.Description), strings.Fields(doc.Description)...)
	words = append(words, repo)
	doc.PrefixMatches = GeneratePrefixesFromList(words)

	if analysis, err := store.GetContent(ctx, id, version, catalog.ContentAnalysis); err == nil && analysis.Status == catalog.StatusReady {
		doc.Element, doc.Behavior = elementBehaviorText(analysis.BodyJSON)
	}

	doc.WeightedFields = strings.Join([]string{
		strings.TrimSpace(strings.Repeat(doc.Repo+" ", 10)),
		strings.TrimSpace(strings.Repeat(doc.Element+" ", 5)),
		strings.TrimSpace(strings.Repeat(doc.Behavior+" ", 5)),
	}, " ")

	doc.Rank = lib.Updated.Sub(epoch).Seconds()

	return doc, nil
}

// elementBehaviorText builds the element/behavior text fields from
// analysis content, preferring the current analyzerData schema and
// falling back to the legacy elementsByTagName/behaviorsByName maps.
func elementBehaviorText(body []byte) (element, behavior string) {
	if len(body) == 0 {
		return "", ""
	}

	var analyzed analyzerDoc
	if err := json.Unmarshal(body, &analyzed); err == nil && len(analyzed.Elements) > 0 {
		var elems []string
		for _, e := range analyzed.Elements {
			if e.TagName != "" {
				elems = append(elems, e.TagName)
			}
			if e.ClassName != "" {
				elems = append(elems, e.ClassName)
			}
		}
		var behs []string
		for _, b := range analyzed.Metadata.Polymer.Behaviors {
			if b.Name != "" {
				behs = append(behs, b.Name)
			}
		}
		return strings.Join(elems, " "), strings.Join(behs, " ")
	}

	var legacy legacyAnalysisDoc
	if err := json.Unmarshal(body, &legacy); err == nil && (len(legacy.ElementsByTagName) > 0 || len(legacy.BehaviorsByName) > 0) {
		elems := make([]string, 0, len(legacy.ElementsByTagName))
		for name := range legacy.ElementsByTagName {
			elems = append(elems, name)
		}
		behs := make([]string, 0, len(legacy.BehaviorsByName))
		for name := range legacy.BehaviorsByName {
			behs = append(behs, name)
		}
		sort.Strings(elems)
		sort.Strings(behs)
		return strings.Join(elems, " "), strings.Join(behs, " ")
	}

	return "", ""
}

// parseDependency splits a bower dependency value ("owner/repo#range")
// into its library id and version range, mirroring the original
// Dependency.from_string parsing.
func parseDependency(value string) (owner, repo, rng string, ok bool) {
	parts := strings.SplitN(value, "#", 2)
	ownerRepo := strings.SplitN(parts[0], "/", 2)
	if len(ownerRepo) != 2 {
		return "", "", "", false
	}
	rng = ""
	if len(parts) == 2 {
		rng = parts[1]
	}
	return strings.ToLower(ownerRepo[0]), strings.ToLower(ownerRepo[1]), rng, true
}
