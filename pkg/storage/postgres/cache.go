package postgres

import (
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/webcomponents/catalog/pkg/catalog"
)

// l1Cache is the in-process L1 tier sitting in front of Redis: an LRU of
// pre-decoded entities, keyed by the same strings RedisClient uses.
// Checking it costs no network round trip, so it absorbs the read
// traffic Redis would otherwise see for recently touched libraries and
// version caches.
type l1Cache struct {
	libraries     *lru.Cache[string, *catalog.Library]
	versionCaches *lru.Cache[string, *catalog.VersionCache]

	mu      sync.Mutex
	expires map[string]time.Time
	ttl     time.Duration
}

func newL1Cache(size int, ttl time.Duration) (*l1Cache, error) {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	libs, err := lru.New[string, *catalog.Library](size)
	if err != nil {
		return nil, err
	}
	vcs, err := lru.New[string, *catalog.VersionCache](size)
	if err != nil {
		return nil, err
	}
	return &l1Cache{
		libraries:     libs,
		versionCaches: vcs,
		expires:       make(map[string]time.Time),
		ttl:           ttl,
	}, nil
}

func (c *l1Cache) fresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.expires[key]
	return ok && time.Now().Before(exp)
}

func (c *l1Cache) touch(key string) {
	c.mu.Lock()
	c.expires[key] = time.Now().Add(c.ttl)
	c.mu.Unlock()
}

func (c *l1Cache) evict(key string) {
	c.mu.Lock()
	delete(c.expires, key)
	c.mu.Unlock()
}

func (c *l1Cache) getLibrary(id string) (*catalog.Library, bool) {
	if !c.fresh(id) {
		return nil, false
	}
	return c.libraries.Get(id)
}

func (c *l1Cache) putLibrary(lib *catalog.Library) {
	c.libraries.Add(lib.ID(), lib)
	c.touch(lib.ID())
}

func (c *l1Cache) invalidateLibrary(id string) {
	c.libraries.Remove(id)
	c.evict(id)
}

func (c *l1Cache) getVersionCache(libraryID string) (*catalog.VersionCache, bool) {
	key := "vc:" + libraryID
	if !c.fresh(key) {
		return nil, false
	}
	return c.versionCaches.Get(libraryID)
}

func (c *l1Cache) putVersionCache(vc *catalog.VersionCache) {
	c.versionCaches.Add(vc.LibraryID, vc)
	c.touch("vc:" + vc.LibraryID)
}

func (c *l1Cache) invalidateVersionCache(libraryID string) {
	c.versionCaches.Remove(libraryID)
	c.evict("vc:" + libraryID)
}

// marshalForRedis and unmarshalFromRedis are small helpers shared by
// RedisClient's Get*/Set* pairs, kept here so both l1Cache and
// RedisClient agree on the wire format for cached entities.
func marshalForRedis(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalFromRedis(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
