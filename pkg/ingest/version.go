package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/tasks"
	"github.com/webcomponents/catalog/pkg/upstream"
)

// IngestVersion runs the per-version pipeline (spec.md §4.6), branching
// on scope: a source-hosted library's README/manifest/pages live at the
// source host itself, while a registry-sourced library's live in its
// published tarball, reached through the registry descriptor's
// gitHead/readmeFilename and an Unpkg CDN fetch.
func (r *Reconciler) IngestVersion(ctx context.Context, owner, repo, tag string) tasks.HandlerResult {
	if isRegistryScope(strings.ToLower(owner)) {
		return r.ingestRegistryVersion(ctx, owner, repo, tag)
	}
	return r.ingestSourceHostVersion(ctx, owner, repo, tag)
}

// ingestSourceHostVersion is the source-hosted version pipeline: fetch
// README, persist raw + rendered HTML, fetch and persist the manifest,
// optionally fetch documentation pages it names, mark the version
// ready, refresh the library's VersionCache, and conditionally enqueue
// a search reindex.
func (r *Reconciler) ingestSourceHostVersion(ctx context.Context, owner, repo, tag string) tasks.HandlerResult {
	id := libraryID(owner, repo)

	v := catalog.Version{LibraryID: id, Tag: tag}
	if lib, err := r.Store.GetLibrary(ctx, id); err == nil {
		for _, tc := range lib.TagMap {
			if tc.Tag == tag {
				v.Sha = tc.Commit
				break
			}
		}
	}

	readme, err := r.SourceHost.GetReadme(ctx, owner, repo, tag, "")
	if err != nil {
		return tasks.Retry(err.Error())
	}
	if readme.Status == upstream.StatusForbidden || readme.Status == upstream.StatusServerError {
		return tasks.Retry("source host unavailable fetching readme")
	}
	if readme.Status == upstream.StatusOk {
		if !utf8.Valid(readme.Body) {
			v.Status = catalog.StatusError
			v.Error = catalog.FetchError{Code: catalog.ErrVersionUTF, Message: "readme is not valid utf-8"}
			r.Store.PutVersion(ctx, &v)
			return tasks.Permanent(v.Error.Code, v.Error.Message)
		}
		if err := r.Store.PutContent(ctx, &catalog.Content{
			LibraryID: id, Tag: tag, Role: catalog.ContentReadme,
			BodyText: readme.Body, ETag: readme.ETag, Status: catalog.StatusReady,
		}); err != nil {
			return tasks.Fatal(err)
		}

		rendered, err := r.SourceHost.RenderMarkdown(ctx, string(readme.Body))
		if err != nil {
			return tasks.Retry(err.Error())
		}
		if rendered.Status == upstream.StatusOk {
			if err := r.Store.PutContent(ctx, &catalog.Content{
				LibraryID: id, Tag: tag, Role: catalog.ContentReadmeHTML,
				BodyText: rendered.Body, Status: catalog.StatusReady,
			}); err != nil {
				return tasks.Fatal(err)
			}
		}
	}

	manifestResult, err := r.SourceHost.GetFile(ctx, owner, repo, tag, "bower.json", "")
	if err != nil {
		return tasks.Retry(err.Error())
	}
	var mf manifest
	switch manifestResult.Status {
	case upstream.StatusNotFound:
		v.Status = catalog.StatusError
		v.Error = catalog.FetchError{Code: catalog.ErrVersionMissingBower, Message: "no bower.json at this tag"}
		r.Store.PutVersion(ctx, &v)
		return tasks.Permanent(v.Error.Code, v.Error.Message)
	case upstream.StatusForbidden, upstream.StatusServerError:
		return tasks.Retry("source host unavailable fetching manifest")
	case upstream.StatusOk:
		parsed, err := parseManifest(manifestResult.Body)
		if err != nil {
			v.Status = catalog.StatusError
			v.Error = catalog.FetchError{Code: catalog.ErrVersionParseBower, Message: err.Error()}
			r.Store.PutVersion(ctx, &v)
			return tasks.Permanent(v.Error.Code, v.Error.Message)
		}
		mf = parsed
		if err := r.Store.PutContent(ctx, &catalog.Content{
			LibraryID: id, Tag: tag, Role: catalog.ContentBower,
			BodyJSON: manifestResult.Body, ETag: manifestResult.ETag, Status: catalog.StatusReady,
		}); err != nil {
			return tasks.Fatal(err)
		}
	}

	for _, path := range mf.Pages {
		pageResult, err := r.SourceHost.GetFile(ctx, owner, repo, tag, path, "")
		if err != nil || pageResult.Status != upstream.StatusOk {
			continue
		}
		r.Store.PutContent(ctx, &catalog.Content{
			LibraryID: id, Tag: tag, Role: catalog.ContentPage(path),
			BodyText: pageResult.Body, ETag: pageResult.ETag, Status: catalog.StatusReady,
		})
	}

	v.Status = catalog.StatusReady
	if err := r.Store.PutVersion(ctx, &v); err != nil {
		return tasks.Fatal(err)
	}

	if r.Analysis != nil {
		if err := r.Analysis.Request(ctx, owner, repo, tag, v.Sha); err != nil {
			return tasks.Retry(fmt.Sprintf("failed to publish analysis request: %v", err))
		}
	}

	return r.finishIngestVersion(ctx, id, owner, repo)
}

// ingestRegistryVersion is the registry-sourced version pipeline: the
// registry descriptor named this tag's git commit and README filename;
// both the README and the package manifest themselves come from the
// published tarball via the Unpkg CDN, not the registry descriptor
// itself (§4.6).
func (r *Reconciler) ingestRegistryVersion(ctx context.Context, owner, repo, tag string) tasks.HandlerResult {
	id := libraryID(owner, repo)
	scope := strings.ToLower(owner)
	pkg := strings.ToLower(repo)
	name := registryPackageName(scope, pkg)

	v := catalog.Version{LibraryID: id, Tag: tag}
	readmeFilename := "README.md"
	if lib, err := r.Store.GetLibrary(ctx, id); err == nil {
		for _, tc := range lib.TagMap {
			if tc.Tag == tag {
				v.Sha = tc.Commit
				break
			}
		}
		if _, rd, parseErr := parseRegistryTagMap(lib.RegistryMetadata.Body); parseErr == nil {
			if entry, ok := rd.Versions[tag]; ok && entry.ReadmeFilename != "" {
				readmeFilename = entry.ReadmeFilename
			}
		}
	}

	readme, err := r.Unpkg.GetFile(ctx, name, tag, readmeFilename, "")
	if err != nil {
		return tasks.Retry(err.Error())
	}
	if readme.Status == upstream.StatusForbidden || readme.Status == upstream.StatusServerError {
		return tasks.Retry("unpkg unavailable fetching readme")
	}
	if readme.Status == upstream.StatusOk {
		if !utf8.Valid(readme.Body) {
			v.Status = catalog.StatusError
			v.Error = catalog.FetchError{Code: catalog.ErrVersionUTF, Message: "readme is not valid utf-8"}
			r.Store.PutVersion(ctx, &v)
			return tasks.Permanent(v.Error.Code, v.Error.Message)
		}
		if err := r.Store.PutContent(ctx, &catalog.Content{
			LibraryID: id, Tag: tag, Role: catalog.ContentReadme,
			BodyText: readme.Body, ETag: readme.ETag, Status: catalog.StatusReady,
		}); err != nil {
			return tasks.Fatal(err)
		}

		rendered, err := r.SourceHost.RenderMarkdown(ctx, string(readme.Body))
		if err != nil {
			return tasks.Retry(err.Error())
		}
		if rendered.Status == upstream.StatusOk {
			if err := r.Store.PutContent(ctx, &catalog.Content{
				LibraryID: id, Tag: tag, Role: catalog.ContentReadmeHTML,
				BodyText: rendered.Body, Status: catalog.StatusReady,
			}); err != nil {
				return tasks.Fatal(err)
			}
		}
	}

	manifestResult, err := r.Unpkg.GetFile(ctx, name, tag, "package.json", "")
	if err != nil {
		return tasks.Retry(err.Error())
	}
	var mf manifest
	switch manifestResult.Status {
	case upstream.StatusNotFound:
		v.Status = catalog.StatusError
		v.Error = catalog.FetchError{Code: catalog.ErrVersionMissingBower, Message: "no package.json at this version"}
		r.Store.PutVersion(ctx, &v)
		return tasks.Permanent(v.Error.Code, v.Error.Message)
	case upstream.StatusForbidden, upstream.StatusServerError:
		return tasks.Retry("unpkg unavailable fetching manifest")
	case upstream.StatusOk:
		parsed, err := parseManifest(manifestResult.Body)
		if err != nil {
			v.Status = catalog.StatusError
			v.Error = catalog.FetchError{Code: catalog.ErrVersionParseBower, Message: err.Error()}
			r.Store.PutVersion(ctx, &v)
			return tasks.Permanent(v.Error.Code, v.Error.Message)
		}
		mf = parsed
		if err := r.Store.PutContent(ctx, &catalog.Content{
			LibraryID: id, Tag: tag, Role: catalog.ContentBower,
			BodyJSON: manifestResult.Body, ETag: manifestResult.ETag, Status: catalog.StatusReady,
		}); err != nil {
			return tasks.Fatal(err)
		}
	}

	for _, path := range mf.Pages {
		pageResult, err := r.Unpkg.GetFile(ctx, name, tag, path, "")
		if err != nil || pageResult.Status != upstream.StatusOk {
			continue
		}
		r.Store.PutContent(ctx, &catalog.Content{
			LibraryID: id, Tag: tag, Role: catalog.ContentPage(path),
			BodyText: pageResult.Body, ETag: pageResult.ETag, Status: catalog.StatusReady,
		})
	}

	v.Status = catalog.StatusReady
	if err := r.Store.PutVersion(ctx, &v); err != nil {
		return tasks.Fatal(err)
	}

	if r.Analysis != nil {
		if err := r.Analysis.Request(ctx, owner, repo, tag, v.Sha); err != nil {
			return tasks.Retry(fmt.Sprintf("failed to publish analysis request: %v", err))
		}
	}

	return r.finishIngestVersion(ctx, id, owner, repo)
}

// finishIngestVersion refreshes the VersionCache and conditionally
// enqueues a reindex, shared by both version pipelines.
func (r *Reconciler) finishIngestVersion(ctx context.Context, id, owner, repo string) tasks.HandlerResult {
	_, changed, err := r.Store.RefreshVersionCacheTx(ctx, id)
	if err != nil {
		return tasks.Fatal(err)
	}
	if changed {
		if err := r.Queue.Enqueue(ctx, tasks.Task{
			QueueName: "default",
			Path:      fmt.Sprintf("/task/update-indexes/%s/%s", owner, repo),
		}); err != nil {
			return tasks.Retry(fmt.Sprintf("failed to enqueue reindex: %v", err))
		}
	}
	return tasks.Continue()
}
