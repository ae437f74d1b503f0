// Package transform implements the module transformation/caching layer
// of spec §4.C: import specifier rewriting, fast-refresh wrapper
// injection, 'use server' shim generation, and a content-hash-addressed
// disk cache with an in-memory LRU front tier.
package transform

import (
	"container/list"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/platform"
)

// FormatVersion is the constant the running process expects of a
// persisted cache index. A mismatch purges the entire cache directory
// on load (spec §8 property 5).
const FormatVersion = 1

// Entry is one row of the persisted index.
type Entry struct {
	Key         string    `json:"key"`
	ContentHash string    `json:"content_hash"`
	Timestamp   time.Time `json:"timestamp"`
}

type index struct {
	FormatVersion int     `json:"format_version"`
	Entries       []Entry `json:"entries"`
}

// Producer computes the bytes for a cache miss.
type Producer func() ([]byte, error)

// memEntry is the in-memory LRU tier's cache line, mirroring the
// teacher's CacheEntry/lru list.List pairing.
type memEntry struct {
	key        string
	hash       string
	code       []byte
	accessTime time.Time
}

// Cache is the content-hash-addressed transform cache: an in-memory LRU
// front tier backed by a disk-persisted index and per-(key,hash) files.
type Cache struct {
	fsys platform.FileSystem
	dir  string

	mu      sync.Mutex
	entries map[string]Entry // key -> latest persisted entry

	lru    *list.List
	lruMap map[string]*list.Element
	mem    map[string]*memEntry
	maxMem int

	group singleflight.Group

	hits, misses int64
}

// Open loads (or initializes) the cache directory at dir. A version
// mismatch in the persisted index purges the directory's cache files
// before returning an empty cache.
func Open(fsys platform.FileSystem, dir string) (*Cache, error) {
	c := &Cache{
		fsys:    fsys,
		dir:     dir,
		entries: make(map[string]Entry),
		lru:     list.New(),
		lruMap:  make(map[string]*list.Element),
		mem:     make(map[string]*memEntry),
		maxMem:  512,
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	idxPath := dir + "/index.json"
	if !fsys.Exists(idxPath) {
		return c, nil
	}

	data, err := fsys.ReadFile(idxPath)
	if err != nil {
		logging.Warning("transform cache: failed reading index, starting empty: %v", err)
		return c, nil
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		logging.Warning("transform cache: corrupt index, starting empty: %v", err)
		return c, nil
	}

	if idx.FormatVersion != FormatVersion {
		c.purge()
		return c, nil
	}

	for _, e := range idx.Entries {
		c.entries[e.Key] = e
	}
	return c, nil
}

func (c *Cache) purge() {
	entries, err := c.fsys.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = c.fsys.Unlink(c.dir + "/" + e.Name())
	}
}

// GetOrProduce returns the cached bytes for (key, hash), invoking
// produce on a miss. Concurrent calls sharing key are serialized so
// produce runs at most once per outstanding miss, even under
// concurrent callers (spec §4.E concurrency, §8 property 4).
func (c *Cache) GetOrProduce(key, hash string, produce Producer) ([]byte, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.getOrProduce(key, hash, produce)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) getOrProduce(key, hash string, produce Producer) ([]byte, error) {
	if data, ok := c.memGet(key, hash); ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return data, nil
	}

	c.mu.Lock()
	existing, hasEntry := c.entries[key]
	c.mu.Unlock()

	if hasEntry && existing.ContentHash == hash {
		data, err := c.fsys.ReadFile(c.filePath(key, hash))
		if err == nil {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			c.memSet(key, hash, data)
			return data, nil
		}
		logging.Warning("transform cache: read failed for %s, falling through: %v", key, err)
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()

	data, err := produce()
	if err != nil {
		return nil, err
	}

	c.store(key, hash, data, existing, hasEntry)
	return data, nil
}

func (c *Cache) store(key, hash string, data []byte, previous Entry, hadPrevious bool) {
	c.memSet(key, hash, data)

	if err := c.fsys.WriteFile(c.filePath(key, hash), data, 0o644); err != nil {
		logging.Warning("transform cache: write failed for %s, serving uncached: %v", key, err)
		return
	}

	if hadPrevious && previous.ContentHash != hash {
		_ = c.fsys.Unlink(c.filePath(key, previous.ContentHash))
	}

	c.mu.Lock()
	c.entries[key] = Entry{Key: key, ContentHash: hash, Timestamp: time.Now()}
	c.mu.Unlock()

	if err := c.persistIndex(); err != nil {
		logging.Warning("transform cache: index write failed, cache entry may not survive restart: %v", err)
	}
}

func (c *Cache) persistIndex() error {
	c.mu.Lock()
	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	idx := index{FormatVersion: FormatVersion, Entries: entries}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return c.fsys.WriteFile(c.dir+"/index.json", data, 0o644)
}

func (c *Cache) memGet(key, hash string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mem[key]
	if !ok || e.hash != hash {
		return nil, false
	}
	e.accessTime = time.Now()
	if elem, ok := c.lruMap[key]; ok {
		c.lru.MoveToFront(elem)
	}
	return e.code, true
}

func (c *Cache) memSet(key, hash string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.mem[key]; ok {
		e.hash = hash
		e.code = data
		e.accessTime = time.Now()
		if elem, ok := c.lruMap[key]; ok {
			c.lru.MoveToFront(elem)
		}
		return
	}

	c.mem[key] = &memEntry{key: key, hash: hash, code: data, accessTime: time.Now()}
	c.lruMap[key] = c.lru.PushFront(key)

	for len(c.mem) > c.maxMem {
		back := c.lru.Back()
		if back == nil {
			break
		}
		k := back.Value.(string)
		c.lru.Remove(back)
		delete(c.lruMap, k)
		delete(c.mem, k)
	}
}

// Stats reports cumulative hit/miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear empties both the in-memory tier and the disk-persisted index,
// unlinking every file in the cache directory.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mem = make(map[string]*memEntry)
	c.lru = list.New()
	c.lruMap = make(map[string]*list.Element)
	c.mu.Unlock()
	c.purge()
}

func (c *Cache) filePath(key, hash string) string {
	return fmt.Sprintf("%s/%s.%s.cache", c.dir, safeKey(key), firstHex(hash, 12))
}

func safeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_")
	return replacer.Replace(key)
}

func firstHex(hash string, n int) string {
	if len(hash) <= n {
		return hash
	}
	return hash[:n]
}
