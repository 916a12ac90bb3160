package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/webcomponents/catalog/pkg/catalog"
)

// FileSystemStore implements Store using the local filesystem: one JSON
// file per entity under a directory laid out by kind. It has no
// read-through cache and no transactional isolation beyond a single
// in-process mutex, so it is meant for local development and tests, not
// production traffic.
type FileSystemStore struct {
	rootDir string
	mu      sync.Mutex
}

// NewFileSystemStore creates a filesystem-backed Store rooted at rootDir.
func NewFileSystemStore(rootDir string) (*FileSystemStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemStore{rootDir: rootDir}, nil
}

func (s *FileSystemStore) path(elems ...string) string {
	return filepath.Join(append([]string{s.rootDir}, elems...)...)
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *FileSystemStore) GetLibrary(ctx context.Context, id string) (*catalog.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lib catalog.Library
	if err := readJSON(s.path("libraries", id, "library.json"), &lib); err != nil {
		return nil, fmt.Errorf("library %s: %w", id, err)
	}
	return &lib, nil
}

func (s *FileSystemStore) ListLibraries(ctx context.Context, kind catalog.Kind, limit, offset int) ([]*catalog.Library, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Library ids are "scope/package", so each library.json sits two
	// directory levels below libraries/.
	paths, err := filepath.Glob(s.path("libraries", "*", "*", "library.json"))
	if err != nil {
		return nil, 0, err
	}
	var all []*catalog.Library
	for _, p := range paths {
		var lib catalog.Library
		if err := readJSON(p, &lib); err != nil {
			continue
		}
		if kind != "" && lib.Kind != kind {
			continue
		}
		all = append(all, &lib)
	}
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *FileSystemStore) PutLibrary(ctx context.Context, lib *catalog.Library) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("libraries", lib.ID(), "library.json"), lib)
}

func (s *FileSystemStore) DeleteLibrary(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.path("libraries", id))
}

func (s *FileSystemStore) GetVersion(ctx context.Context, libraryID, tag string) (*catalog.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v catalog.Version
	if err := readJSON(s.path("libraries", libraryID, "versions", tag, "version.json"), &v); err != nil {
		return nil, fmt.Errorf("version %s/%s: %w", libraryID, tag, err)
	}
	return &v, nil
}

func (s *FileSystemStore) ListVersions(ctx context.Context, libraryID string) ([]*catalog.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.path("libraries", libraryID, "versions"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var versions []*catalog.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var v catalog.Version
		if err := readJSON(s.path("libraries", libraryID, "versions", e.Name(), "version.json"), &v); err != nil {
			continue
		}
		versions = append(versions, &v)
	}
	return versions, nil
}

func (s *FileSystemStore) PutVersion(ctx context.Context, v *catalog.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("libraries", v.LibraryID, "versions", v.Tag, "version.json"), v)
}

func (s *FileSystemStore) DeleteVersion(ctx context.Context, libraryID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.path("libraries", libraryID, "versions", tag))
}

func (s *FileSystemStore) GetContent(ctx context.Context, libraryID, tag string, role catalog.ContentRole) (*catalog.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c catalog.Content
	if err := readJSON(s.path("libraries", libraryID, "versions", tag, "content-"+string(role)+".json"), &c); err != nil {
		return nil, fmt.Errorf("content %s/%s/%s: %w", libraryID, tag, role, err)
	}
	return &c, nil
}

func (s *FileSystemStore) PutContent(ctx context.Context, c *catalog.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("libraries", c.LibraryID, "versions", c.Tag, "content-"+string(c.Role)+".json"), c)
}

func (s *FileSystemStore) GetAuthor(ctx context.Context, name string) (*catalog.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var a catalog.Author
	if err := readJSON(s.path("authors", name+".json"), &a); err != nil {
		return nil, fmt.Errorf("author %s: %w", name, err)
	}
	return &a, nil
}

func (s *FileSystemStore) PutAuthor(ctx context.Context, a *catalog.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("authors", a.Name+".json"), a)
}

func (s *FileSystemStore) ListAuthors(ctx context.Context, limit, offset int) ([]*catalog.Author, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.path("authors"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	var all []*catalog.Author
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var a catalog.Author
		if err := readJSON(s.path("authors", e.Name()), &a); err != nil {
			continue
		}
		all = append(all, &a)
	}
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *FileSystemStore) PutCollectionReference(ctx context.Context, ref *catalog.CollectionReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("libraries", ref.MemberLibraryID, "refs", ref.ID()+".json"), ref)
}

func (s *FileSystemStore) ListCollectionReferences(ctx context.Context, memberLibraryID string) ([]*catalog.CollectionReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.path("libraries", memberLibraryID, "refs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var refs []*catalog.CollectionReference
	for _, e := range entries {
		var ref catalog.CollectionReference
		if err := readJSON(s.path("libraries", memberLibraryID, "refs", e.Name()), &ref); err != nil {
			continue
		}
		refs = append(refs, &ref)
	}
	return refs, nil
}

func (s *FileSystemStore) DeleteCollectionReferencesForCollection(ctx context.Context, collectionScope, collectionPackage, collectionTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Member ids are "scope/package", so refs/ sits two directory levels
	// below libraries/.
	paths, err := filepath.Glob(s.path("libraries", "*", "*", "refs", "*"))
	if err != nil {
		return err
	}
	wantID := collectionScope + "/" + collectionPackage + "/" + collectionTag
	for _, p := range paths {
		var ref catalog.CollectionReference
		if err := readJSON(p, &ref); err != nil {
			continue
		}
		if ref.ID() == wantID {
			os.Remove(p)
		}
	}
	return nil
}

func (s *FileSystemStore) GetVersionCache(ctx context.Context, libraryID string) (*catalog.VersionCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c catalog.VersionCache
	if err := readJSON(s.path("libraries", libraryID, "versioncache.json"), &c); err != nil {
		if os.IsNotExist(err) {
			return &catalog.VersionCache{LibraryID: libraryID}, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *FileSystemStore) RefreshVersionCacheTx(ctx context.Context, libraryID string) (catalog.VersionCache, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous catalog.VersionCache
	_ = readJSON(s.path("libraries", libraryID, "versioncache.json"), &previous)

	entries, err := os.ReadDir(s.path("libraries", libraryID, "versions"))
	if err != nil && !os.IsNotExist(err) {
		return catalog.VersionCache{}, false, err
	}
	var versions []catalog.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var v catalog.Version
		if err := readJSON(s.path("libraries", libraryID, "versions", e.Name(), "version.json"), &v); err != nil {
			continue
		}
		versions = append(versions, v)
	}

	next, changed := catalog.RefreshVersionCache(libraryID, versions, previous)
	if err := writeJSON(s.path("libraries", libraryID, "versioncache.json"), &next); err != nil {
		return catalog.VersionCache{}, false, err
	}
	return next, changed, nil
}

func (s *FileSystemStore) GetSitemap(ctx context.Context, kind catalog.SitemapKind) (*catalog.Sitemap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sm catalog.Sitemap
	if err := readJSON(s.path("sitemaps", string(kind)+".json"), &sm); err != nil {
		if os.IsNotExist(err) {
			return &catalog.Sitemap{Kind: kind}, nil
		}
		return nil, err
	}
	return &sm, nil
}

func (s *FileSystemStore) PutSitemap(ctx context.Context, sm *catalog.Sitemap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path("sitemaps", string(sm.Kind)+".json"), sm)
}

func (s *FileSystemStore) PutBlob(ctx context.Context, content []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	path := s.path("blobs", hash[:2], hash[2:])
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", err
	}
	return hash, nil
}

func (s *FileSystemStore) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(hash) < 3 {
		return nil, fmt.Errorf("invalid blob hash %q", hash)
	}
	return os.ReadFile(s.path("blobs", hash[:2], hash[2:]))
}

// InvalidateCache is a no-op: filesystem storage has no read-through cache.
func (s *FileSystemStore) InvalidateCache(ctx context.Context, patterns ...string) error {
	return nil
}

func (s *FileSystemStore) HealthCheck(ctx context.Context) error {
	_, err := os.Stat(s.rootDir)
	if err != nil {
		return fmt.Errorf("filesystem storage health check failed: %w", err)
	}
	return nil
}

var _ Store = (*FileSystemStore)(nil)
