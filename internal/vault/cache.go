package vault

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/julien-sobczak/nt-anki/internal/helpers"
)

// syncCache persists one hash per document to skip unchanged files on the
// next sync. Losing the cache is harmless: every file is simply rescanned.
type syncCache struct {
	Hashes map[string]string `yaml:"hashes"`
}

func newCache() *syncCache {
	return &syncCache{
		Hashes: make(map[string]string),
	}
}

// loadCache reads the cache file, falling back to an empty cache when the
// file is missing or unreadable.
func loadCache(path string) *syncCache {
	content, err := os.ReadFile(path)
	if err != nil {
		return newCache()
	}
	var cache syncCache
	if err := yaml.Unmarshal(content, &cache); err != nil {
		return newCache()
	}
	if cache.Hashes == nil {
		cache.Hashes = make(map[string]string)
	}
	return &cache
}

// UpToDate checks if a document changed since the last recorded sync.
func (c *syncCache) UpToDate(relpath string, content []byte) bool {
	hash, ok := c.Hashes[relpath]
	return ok && hash == helpers.Hash(content)
}

// Update records the synced content of a document.
func (c *syncCache) Update(relpath string, content []byte) {
	c.Hashes[relpath] = helpers.Hash(content)
}

// Forget drops a document from the cache.
func (c *syncCache) Forget(relpath string) {
	delete(c.Hashes, relpath)
}

// Save persists the cache.
func (c *syncCache) Save(path string) error {
	content, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(content))
}
