package catalog

import (
	"time"

	"github.com/webcomponents/catalog/pkg/versiontag"
)

// Kind distinguishes a single web component from a collection of them.
type Kind string

const (
	KindElement    Kind = "element"
	KindCollection Kind = "collection"
)

// Status is the lifecycle state shared by Library, Version, Author and
// Content entities.
type Status string

const (
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
	StatusSuppressed Status = "suppressed"
)

// FetchError is a structured {code, message} failure recorded on an
// entity. A zero value means "no error".
type FetchError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// IsZero reports whether e carries no error.
func (e FetchError) IsZero() bool {
	return e.Code == "" && e.Message == ""
}

// Permanent error codes (§7). None of these are retried by the task
// queue: the entity is committed with status=error and the handler
// returns 200.
const (
	ErrLibraryParseMetadata      = "Library_parse_metadata"
	ErrLibraryParseContributors  = "Library_parse_contributors"
	ErrLibraryParseStats         = "Library_parse_stats"
	ErrLibraryParseBower         = "Library_parse_bower"
	ErrLibraryParseRegistry      = "Library_parse_registry"
	ErrLibraryLicense            = "Library_license"
	ErrLibraryCollectionParseTags = "Library_collection_parse_tags"
	ErrLibraryCollectionMaster   = "Library_collection_master"
	ErrLibraryElementParseTags   = "Library_element_parse_tags"
	ErrLibraryNoVersion          = "Library_no_version"
	ErrLibraryNoPackage          = "Library_no_package"
	ErrLibraryNoGithub           = "Library_no_github"
	ErrVersionUTF                = "Version_utf"
	ErrVersionParseBower         = "Version_parse_bower"
	ErrVersionMissingBower       = "Version_missing_bower"
	ErrAuthorNotFound            = "Author_not_found"
)

// CachedResource is an opaque upstream response blob paired with the
// etag it was fetched under, used for conditional (If-None-Match) GETs.
type CachedResource struct {
	Body    []byte    `json:"body,omitempty"`
	ETag    string    `json:"etag,omitempty"`
	Updated time.Time `json:"updated,omitempty"`
}

// Library is the root entity for a catalog package, identified by
// (scope, package). Scope begins with "@" for registry packages;
// "@@npm" is reserved for the unscoped registry.
type Library struct {
	Scope   string `json:"scope"`
	Package string `json:"package"`

	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	Error  FetchError `json:"error,omitempty"`

	// ShallowIngestion skips version enumeration and author ingestion;
	// set for preview (pull-request) builds.
	ShallowIngestion bool `json:"shallow_ingestion"`

	GithubOwner string `json:"github_owner,omitempty"`
	GithubRepo  string `json:"github_repo,omitempty"`

	SpdxIdentifier string `json:"spdx_identifier,omitempty"`

	Metadata         CachedResource `json:"metadata"`
	Contributors     CachedResource `json:"contributors"`
	Participation    CachedResource `json:"participation"`
	RegistryMetadata CachedResource `json:"registry_metadata"`

	// Tags is the canonical ordered list for display.
	Tags []string `json:"tags,omitempty"`
	// TagMap is the ordered mapping tag -> commit id; the authoritative
	// source of "what to ingest".
	TagMap []TagCommit `json:"tag_map,omitempty"`

	CollectionSequenceNumber int64 `json:"collection_sequence_number,omitempty"`

	// NpmPackage is non-empty if this Library was superseded by a
	// registry counterpart (id of the successor).
	NpmPackage string `json:"npm_package,omitempty"`
	// MigratedFromBower mirrors that flag on the successor.
	MigratedFromBower bool `json:"migrated_from_bower,omitempty"`

	Updated time.Time `json:"updated"`
}

// TagCommit is one entry of a Library's tag_map: a tag name paired with
// the commit id (or registry gitHead, possibly empty) it resolves to.
type TagCommit struct {
	Tag    string `json:"tag"`
	Commit string `json:"commit"`
}

// ID composes the canonical Library identifier "<scope>/<package>".
// Callers must lower-case scope/package before calling, per §3.
func (l Library) ID() string {
	return ID(l.Scope, l.Package)
}

// ID composes a library id from scope and package name.
func ID(scope, pkg string) string {
	return scope + "/" + pkg
}

// RegistryScope is the reserved scope for unscoped npm packages.
const RegistryScope = "@@npm"

// Version is a child of Library, keyed by tag.
type Version struct {
	LibraryID string `json:"library_id"`
	Tag       string `json:"tag"`

	Sha string `json:"sha"`
	// URL points at an upstream PR for preview builds.
	URL     string `json:"url,omitempty"`
	Preview bool   `json:"preview,omitempty"`

	Status Status     `json:"status"`
	Error  FetchError `json:"error,omitempty"`

	Updated time.Time `json:"updated"`
}

// ContentRole names the slot a Content entity fills under a Version.
type ContentRole string

const (
	ContentReadme     ContentRole = "readme"
	ContentReadmeHTML ContentRole = "readme.html"
	ContentBower      ContentRole = "bower"
	ContentAnalysis   ContentRole = "analysis"
)

// ContentPage builds the role id for an optional documentation page at
// the given manifest-relative path.
func ContentPage(path string) ContentRole {
	return ContentRole("page-" + path)
}

// Content is a child of Version, keyed by role. Exactly one of BodyText,
// BodyJSON is set (invariant 4).
type Content struct {
	LibraryID string      `json:"library_id"`
	Tag       string      `json:"tag"`
	Role      ContentRole `json:"role"`

	BodyText []byte `json:"body_text,omitempty"`
	BodyJSON []byte `json:"body_json,omitempty"` // compressed JSON

	ETag   string     `json:"etag,omitempty"`
	Status Status     `json:"status"`
	Error  FetchError `json:"error,omitempty"`

	Updated time.Time `json:"updated"`
}

// CollectionReference is the inverse edge "library X appears in
// collection version Y with range Z", stored under the member Library.
type CollectionReference struct {
	// MemberLibraryID is the Library this reference is attached to.
	MemberLibraryID string `json:"member_library_id"`

	CollectionScope   string `json:"collection_scope"`
	CollectionPackage string `json:"collection_package"`
	CollectionTag     string `json:"collection_tag"`

	Range string `json:"range"`
}

// ID composes the CollectionReference identifier
// "<collection_scope>/<collection_pkg>/<collection_tag>".
func (r CollectionReference) ID() string {
	return r.CollectionScope + "/" + r.CollectionPackage + "/" + r.CollectionTag
}

// Author is a root entity for a normalized identity.
type Author struct {
	Name     string         `json:"name"`
	Metadata CachedResource `json:"metadata"`
	Status   Status         `json:"status"`
	Error    FetchError     `json:"error,omitempty"`
	Updated  time.Time      `json:"updated"`
}

// VersionCache is the singleton derived child of Library (id "versions"):
// the ordered list of ready version tags the read path serves.
type VersionCache struct {
	LibraryID string   `json:"library_id"`
	Versions  []string `json:"versions"`
}

// DefaultVersion returns the version readers should see by default, or
// "" if the cache is empty.
func (c VersionCache) DefaultVersion() string {
	return versiontag.DefaultVersion(c.Versions)
}

// SitemapKind names one of the three bulk URL-emission buckets.
type SitemapKind string

const (
	SitemapElements    SitemapKind = "elements"
	SitemapCollections SitemapKind = "collections"
	SitemapAuthors     SitemapKind = "authors"
)

// Sitemap is a root entity keyed by kind: the list of ids for bulk URL
// emission.
type Sitemap struct {
	Kind SitemapKind `json:"kind"`
	IDs  []string    `json:"ids"`
}
