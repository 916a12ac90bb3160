package ingest

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/webcomponents/catalog/pkg/analysis"
	"github.com/webcomponents/catalog/pkg/catalog"
	"github.com/webcomponents/catalog/pkg/storage"
	"github.com/webcomponents/catalog/pkg/tasks"
	"github.com/webcomponents/catalog/pkg/upstream"
	"github.com/webcomponents/catalog/pkg/versiontag"
)

// Reconciler drives the four library entry points (Ingest, Update,
// IngestWebhook, IngestPreview) through one shared procedure.
type Reconciler struct {
	Store      storage.Store
	SourceHost *upstream.SourceHostClient
	Registry   *upstream.RegistryClient
	Unpkg      *upstream.UnpkgClient
	Queue      tasks.Queue
	Allowlist  catalog.SPDXAllowlist

	// Analysis publishes the off-host analysis request IngestVersion
	// fires for every new version; nil disables the bridge (tests that
	// don't exercise it).
	Analysis *analysis.Publisher
}

// Options parameterizes one reconciliation call; the four entry points
// differ only in which of these they set.
type Options struct {
	Scope   string
	Package string

	// Preview marks a pull-request build: skips version enumeration and
	// author ingestion (catalog.Library.ShallowIngestion).
	Preview bool
	// PreviewURL points at the upstream PR when Preview is set.
	PreviewURL string
	// PreviewSha pins the exact commit for a preview build.
	PreviewSha string

	// WebhookTag, when set, is the single tag a push webhook reported;
	// reconciliation still refreshes full metadata and diffs the whole
	// tag map, but an addition is enqueued only if it is this tag.
	WebhookTag string
}

func libraryID(scope, pkg string) string {
	return catalog.ID(strings.ToLower(scope), strings.ToLower(pkg))
}

// Ingest reconciles a library seen for the first time.
func (r *Reconciler) Ingest(ctx context.Context, owner, repo string) tasks.HandlerResult {
	return r.reconcileLibrary(ctx, Options{Scope: owner, Package: repo})
}

// Update reconciles a library the sweeper or a manual trigger re-visits.
func (r *Reconciler) Update(ctx context.Context, owner, repo string) tasks.HandlerResult {
	return r.reconcileLibrary(ctx, Options{Scope: owner, Package: repo})
}

// IngestWebhook reconciles in response to an upstream push notification
// naming a single tag.
func (r *Reconciler) IngestWebhook(ctx context.Context, owner, repo, tag string) tasks.HandlerResult {
	return r.reconcileLibrary(ctx, Options{Scope: owner, Package: repo, WebhookTag: tag})
}

// IngestPreview reconciles a pull-request build: shallow, one version,
// never exposed as the default.
func (r *Reconciler) IngestPreview(ctx context.Context, owner, repo, prURL, sha string) tasks.HandlerResult {
	return r.reconcileLibrary(ctx, Options{
		Scope: owner, Package: repo,
		Preview: true, PreviewURL: prURL, PreviewSha: sha,
	})
}

// reconcileLibrary is the entry shared by all four public methods: it
// loads whatever Library already exists, then branches on scope (§3) to
// one of the two metadata-and-tag-discovery procedures source-hosted
// and registry-sourced libraries need (§4.5).
func (r *Reconciler) reconcileLibrary(ctx context.Context, opts Options) tasks.HandlerResult {
	id := libraryID(opts.Scope, opts.Package)
	existing, err := r.Store.GetLibrary(ctx, id)
	firstTime := err != nil
	if firstTime {
		existing = &catalog.Library{Scope: strings.ToLower(opts.Scope), Package: strings.ToLower(opts.Package)}
	}

	if isRegistryScope(strings.ToLower(opts.Scope)) {
		return r.reconcileRegistryLibrary(ctx, id, opts, existing, firstTime)
	}
	return r.reconcileSourceHostLibrary(ctx, id, opts, existing, firstTime)
}

// sourceMetadata holds the source-host fan-out results.
type sourceMetadata struct {
	repo          upstream.FetchResult
	tags          upstream.FetchResult
	contributors  upstream.FetchResult
	participation upstream.FetchResult
	manifest      upstream.FetchResult
	masterRef     upstream.FetchResult
}

// fetchSourceMetadata runs the repo descriptor, tags, contributors,
// participation stats, default-branch manifest and default-branch HEAD
// ref fetches concurrently. The manifest and HEAD ref feed license/kind
// resolution and collection tag discovery regardless of a library's
// eventual kind, since kind itself isn't known until the manifest is in
// hand.
func (r *Reconciler) fetchSourceMetadata(ctx context.Context, owner, repo string, prev *catalog.Library) (sourceMetadata, error) {
	var m sourceMetadata
	g, ctx := errgroup.WithContext(ctx)

	etag := func(role string) string {
		if prev == nil {
			return ""
		}
		switch role {
		case "metadata":
			return prev.Metadata.ETag
		case "contributors":
			return prev.Contributors.ETag
		case "participation":
			return prev.Participation.ETag
		}
		return ""
	}

	g.Go(func() error {
		res, err := r.SourceHost.GetRepo(ctx, owner, repo, etag("metadata"))
		m.repo = res
		return err
	})
	g.Go(func() error {
		res, err := r.SourceHost.GetTags(ctx, owner, repo, "")
		m.tags = res
		return err
	})
	g.Go(func() error {
		res, err := r.SourceHost.GetContributors(ctx, owner, repo, etag("contributors"))
		m.contributors = res
		return err
	})
	g.Go(func() error {
		res, err := r.SourceHost.GetStats(ctx, owner, repo, etag("participation"))
		m.participation = res
		return err
	})
	g.Go(func() error {
		res, err := r.SourceHost.GetFile(ctx, owner, repo, "master", "bower.json", "")
		m.manifest = res
		return err
	})
	g.Go(func() error {
		res, err := r.SourceHost.GetMasterRef(ctx, owner, repo, "")
		m.masterRef = res
		return err
	})

	if err := g.Wait(); err != nil {
		return sourceMetadata{}, fmt.Errorf("ingest: metadata fan-out failed: %w", err)
	}
	return m, nil
}

// reconcileSourceHostLibrary is the source-hosted half of
// reconcileLibrary (§4.5): resolve license and kind from the repo
// descriptor and default-branch manifest, then discover tags either
// from the tags endpoint (element) or by synthesizing a pseudo-version
// from the default branch's HEAD (collection).
func (r *Reconciler) reconcileSourceHostLibrary(ctx context.Context, id string, opts Options, existing *catalog.Library, firstTime bool) tasks.HandlerResult {
	meta, err := r.fetchSourceMetadata(ctx, opts.Scope, opts.Package, existing)
	if err != nil {
		return tasks.Retry(err.Error())
	}

	if meta.repo.Status == upstream.StatusNotFound {
		// Upstream 404 on the library triggers cascade deletion, not an
		// error entity (§7).
		if delErr := r.Store.DeleteLibrary(ctx, id); delErr != nil {
			return tasks.Fatal(delErr)
		}
		return tasks.Continue()
	}
	if meta.repo.Status == upstream.StatusForbidden {
		return tasks.Retry("source host quota exceeded")
	}
	if meta.repo.Status == upstream.StatusServerError {
		return tasks.Retry("source host server error")
	}

	lib := *existing
	lib.Scope = strings.ToLower(opts.Scope)
	lib.Package = strings.ToLower(opts.Package)
	lib.GithubOwner = opts.Scope
	lib.GithubRepo = opts.Package
	lib.ShallowIngestion = opts.Preview

	if meta.repo.Status == upstream.StatusOk {
		lib.Metadata = catalog.CachedResource{Body: meta.repo.Body, ETag: meta.repo.ETag}
	}
	if meta.contributors.Status == upstream.StatusOk {
		lib.Contributors = catalog.CachedResource{Body: meta.contributors.Body, ETag: meta.contributors.ETag}
	}
	if meta.participation.Status == upstream.StatusOk {
		lib.Participation = catalog.CachedResource{Body: meta.participation.Body, ETag: meta.participation.ETag}
	}

	var manifestBody []byte
	if meta.manifest.Status == upstream.StatusOk {
		manifestBody = meta.manifest.Body
	}
	lib.Kind = resolveKind(manifestBody)

	license, ok := resolveLicense(lib.Metadata.Body, manifestBody, nil, r.Allowlist)
	if !ok {
		return r.failLibrary(ctx, &lib, catalog.ErrLibraryLicense, "no allowlisted SPDX license found")
	}
	lib.SpdxIdentifier = license

	var newTagMap []catalog.TagCommit
	switch lib.Kind {
	case catalog.KindCollection:
		if meta.masterRef.Status != upstream.StatusOk {
			return r.failLibrary(ctx, &lib, catalog.ErrLibraryCollectionMaster, "failed to fetch default branch HEAD")
		}
		headSha, shaErr := parseMasterRefSha(meta.masterRef.Body)
		if shaErr != nil {
			return r.failLibrary(ctx, &lib, catalog.ErrLibraryCollectionMaster, shaErr.Error())
		}
		tagMap, seq := discoverCollectionTagMap(existing, headSha)
		newTagMap = tagMap
		lib.CollectionSequenceNumber = seq
	default:
		if meta.tags.Status == upstream.StatusOk {
			tagMap, parseErr := parseTags(meta.tags.Body)
			if parseErr != nil {
				return r.failLibrary(ctx, &lib, catalog.ErrLibraryElementParseTags, parseErr.Error())
			}
			newTagMap = tagMap
		} else {
			newTagMap = existing.TagMap
		}
	}
	lib.TagMap = newTagMap
	lib.Tags = tagNames(newTagMap)

	return r.finishReconcile(ctx, id, opts, &lib, firstTime)
}

// reconcileRegistryLibrary is the registry-sourced half of
// reconcileLibrary (§4.5): a single conditional GET against the
// registry descriptor resolves license, the source-host coordinates
// used for rename detection, and the tag_map (the descriptor's
// "versions" dictionary).
func (r *Reconciler) reconcileRegistryLibrary(ctx context.Context, id string, opts Options, existing *catalog.Library, firstTime bool) tasks.HandlerResult {
	scope := strings.ToLower(opts.Scope)
	pkg := strings.ToLower(opts.Package)
	name := registryPackageName(scope, pkg)

	res, err := r.Registry.GetPackage(ctx, name, existing.RegistryMetadata.ETag)
	if err != nil {
		return tasks.Retry(err.Error())
	}
	switch res.Status {
	case upstream.StatusNotFound:
		if delErr := r.Store.DeleteLibrary(ctx, id); delErr != nil {
			return tasks.Fatal(delErr)
		}
		return tasks.Continue()
	case upstream.StatusForbidden:
		return tasks.Retry("registry quota exceeded")
	case upstream.StatusServerError:
		return tasks.Retry("registry server error")
	}

	lib := *existing
	lib.Scope, lib.Package = scope, pkg
	lib.ShallowIngestion = opts.Preview
	lib.Kind = catalog.KindElement

	newTagMap := existing.TagMap
	if res.Status == upstream.StatusOk {
		lib.RegistryMetadata = catalog.CachedResource{Body: res.Body, ETag: res.ETag}

		if owner, repo, ok := parseRepositoryField(res.Body); ok {
			if existing.GithubOwner != "" && existing.GithubRepo != "" &&
				(owner != existing.GithubOwner || repo != existing.GithubRepo) {
				// The registry descriptor now points at different
				// source-host coordinates than the ones on file: this is
				// a rename, not an ordinary metadata refresh. Delete this
				// entity and re-ingest under the new coordinates instead
				// of mutating it in place (§4.5).
				if delErr := r.Store.DeleteLibrary(ctx, id); delErr != nil {
					return tasks.Fatal(delErr)
				}
				if enqErr := r.Queue.Enqueue(ctx, tasks.Task{
					QueueName: "default",
					Path:      fmt.Sprintf("/task/ingest/%s/%s", owner, repo),
				}); enqErr != nil {
					return tasks.Retry(fmt.Sprintf("failed to enqueue rename target: %v", enqErr))
				}
				return tasks.Continue()
			}
			lib.GithubOwner, lib.GithubRepo = owner, repo
		}

		tagMap, _, parseErr := parseRegistryTagMap(res.Body)
		if parseErr != nil {
			return r.failLibrary(ctx, &lib, catalog.ErrLibraryParseRegistry, parseErr.Error())
		}
		newTagMap = tagMap

		license, ok := resolveLicense(nil, nil, res.Body, r.Allowlist)
		if !ok {
			return r.failLibrary(ctx, &lib, catalog.ErrLibraryLicense, "no allowlisted SPDX license found")
		}
		lib.SpdxIdentifier = license
	}

	lib.TagMap = newTagMap
	lib.Tags = tagNames(newTagMap)

	return r.finishReconcile(ctx, id, opts, &lib, firstTime)
}

// discoverCollectionTagMap synthesizes the next pseudo-version for a
// collection library (§4.5): v0.0.<N>, bumping N only when the
// default-branch HEAD commit differs from the commit its most recent
// synthesized tag points at. Prior synthetic tags are never removed,
// so a sequence bump never produces a to_delete.
func discoverCollectionTagMap(existing *catalog.Library, headSha string) ([]catalog.TagCommit, int64) {
	seq := existing.CollectionSequenceNumber
	if seq == 0 {
		seq = 1
	}
	var lastSha string
	if n := len(existing.TagMap); n > 0 {
		lastSha = existing.TagMap[n-1].Commit
	}
	if lastSha != "" && lastSha == headSha {
		return existing.TagMap, seq
	}
	if lastSha != "" {
		seq++
	}
	tag := fmt.Sprintf("v0.0.%d", seq)
	next := append(append([]catalog.TagCommit{}, existing.TagMap...), catalog.TagCommit{Tag: tag, Commit: headSha})
	return next, seq
}

// failLibrary persists lib with status=error and the given code, then
// returns the matching permanent task outcome.
func (r *Reconciler) failLibrary(ctx context.Context, lib *catalog.Library, code, message string) tasks.HandlerResult {
	lib.Status = catalog.StatusError
	lib.Error = catalog.FetchError{Code: code, Message: message}
	if err := r.Store.PutLibrary(ctx, lib); err != nil {
		return tasks.Fatal(err)
	}
	return tasks.Permanent(lib.Error.Code, lib.Error.Message)
}

// finishReconcile applies the tail shared by both scopes (§4.5): append
// the preview pseudo-tag for a PR build, persist the library, ensure
// its author is tracked the first time it's seen, and throttle the
// resulting to_add/to_delete backlog to at most one enqueue.
func (r *Reconciler) finishReconcile(ctx context.Context, id string, opts Options, lib *catalog.Library, firstTime bool) tasks.HandlerResult {
	if opts.Preview && opts.PreviewSha != "" {
		lib.TagMap = append(lib.TagMap, catalog.TagCommit{Tag: previewTag(opts.PreviewURL), Commit: opts.PreviewSha})
		lib.Tags = tagNames(lib.TagMap)
	}

	if lib.Status != catalog.StatusError {
		if len(lib.TagMap) == 0 {
			lib.Status = catalog.StatusError
			lib.Error = catalog.FetchError{Code: catalog.ErrLibraryNoVersion, Message: "no tags found upstream"}
		} else {
			lib.Status = catalog.StatusReady
		}
	}

	if err := r.Store.PutLibrary(ctx, lib); err != nil {
		return tasks.Fatal(err)
	}

	if firstTime && !opts.Preview {
		if authorName, ok := authorForScope(strings.ToLower(opts.Scope)); ok {
			if err := r.Queue.Enqueue(ctx, tasks.Task{
				QueueName: "default",
				Path:      fmt.Sprintf("/task/update-author/%s", authorName),
			}); err != nil {
				return tasks.Retry(fmt.Sprintf("failed to enqueue author ensure: %v", err))
			}
		}
	}

	if lib.Status == catalog.StatusError {
		return tasks.Permanent(lib.Error.Code, lib.Error.Message)
	}

	if opts.Preview {
		tag := previewTag(opts.PreviewURL)
		if err := r.Queue.Enqueue(ctx, tasks.Task{
			QueueName: "default",
			Path:      fmt.Sprintf("/task/ingest/%s/%s/%s", opts.Scope, opts.Package, tag),
		}); err != nil {
			return tasks.Retry(fmt.Sprintf("failed to enqueue preview ingest: %v", err))
		}
		return tasks.Continue()
	}

	toAdd, toDelete, err := r.computeTagChanges(ctx, id, lib.TagMap)
	if err != nil {
		return tasks.Fatal(err)
	}
	if opts.WebhookTag != "" {
		toAdd = filterTag(toAdd, opts.WebhookTag)
	}

	for _, tag := range toAdd {
		if err := r.Queue.Enqueue(ctx, tasks.Task{
			QueueName: "default",
			Path:      fmt.Sprintf("/task/ingest/%s/%s/%s", opts.Scope, opts.Package, tag),
		}); err != nil {
			return tasks.Retry(fmt.Sprintf("failed to enqueue version ingest: %v", err))
		}
	}
	for _, tag := range toDelete {
		if err := r.deleteVersion(ctx, id, opts.Scope, opts.Package, tag); err != nil {
			return tasks.Retry(err.Error())
		}
	}

	return tasks.Continue()
}

// authorForScope maps a library's scope to the author name
// update-author should track: the bare login for a source-host library,
// the scope name (without "@") for a scoped registry library, and no
// author at all for the reserved unscoped registry ("@@npm" has no
// org to track).
func authorForScope(scope string) (string, bool) {
	if scope == catalog.RegistryScope {
		return "", false
	}
	if isRegistryScope(scope) {
		return strings.TrimPrefix(scope, "@"), true
	}
	return scope, true
}

// computeTagChanges applies the to_add/to_delete throttle (§4.5):
// to_add is tag_map keys not yet ingested, reduced to just the default
// version on a library's first pass and to versions newer than the
// previously-ingested default afterward; to_delete is ingested tags no
// longer present in tag_map. At most one of the two is ever returned,
// so a single reconcile only ever moves a library forward or backward,
// never both.
func (r *Reconciler) computeTagChanges(ctx context.Context, id string, tagMap []catalog.TagCommit) (toAdd, toDelete []string, err error) {
	existingVersions, err := r.Store.ListVersions(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ingested := make(map[string]bool, len(existingVersions))
	ingestedTags := make([]string, 0, len(existingVersions))
	for _, v := range existingVersions {
		ingested[v.Tag] = true
		ingestedTags = append(ingestedTags, v.Tag)
	}

	newKeys := make(map[string]bool, len(tagMap))
	var addCandidates []string
	for _, tc := range tagMap {
		newKeys[tc.Tag] = true
		if !ingested[tc.Tag] {
			addCandidates = append(addCandidates, tc.Tag)
		}
	}

	if len(ingestedTags) == 0 {
		if len(addCandidates) > 0 {
			if def := versiontag.DefaultVersion(addCandidates); def != "" {
				addCandidates = []string{def}
			}
		}
	} else if prevDefault := versiontag.DefaultVersion(ingestedTags); prevDefault != "" {
		filtered := addCandidates[:0]
		for _, t := range addCandidates {
			if versiontag.Compare(t, prevDefault) > 0 {
				filtered = append(filtered, t)
			}
		}
		addCandidates = filtered
	}
	versiontag.Sort(addCandidates)
	if len(addCandidates) > 1 {
		addCandidates = addCandidates[len(addCandidates)-1:]
	}

	for _, tag := range ingestedTags {
		if !newKeys[tag] {
			toDelete = append(toDelete, tag)
		}
	}
	if len(toDelete) > 1 {
		toDelete = toDelete[:1]
	}
	if len(addCandidates) > 0 {
		toDelete = nil
	}

	return addCandidates, toDelete, nil
}

// deleteVersion removes a Version no longer present upstream and
// mirrors IngestVersion's cache-refresh/reindex tail so the read path
// never keeps serving a deleted default.
func (r *Reconciler) deleteVersion(ctx context.Context, id, scope, pkg, tag string) error {
	if err := r.Store.DeleteVersion(ctx, id, tag); err != nil {
		return err
	}
	_, changed, err := r.Store.RefreshVersionCacheTx(ctx, id)
	if err != nil {
		return err
	}
	if changed {
		if err := r.Queue.Enqueue(ctx, tasks.Task{
			QueueName: "default",
			Path:      fmt.Sprintf("/task/update-indexes/%s/%s", scope, pkg),
		}); err != nil {
			return err
		}
	}
	return nil
}

func filterTag(all []string, tag string) []string {
	for _, t := range all {
		if t == tag {
			return []string{t}
		}
	}
	return nil
}

func tagNames(tags []catalog.TagCommit) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Tag
	}
	return names
}

func previewTag(prURL string) string {
	return "pr-" + prURL
}
