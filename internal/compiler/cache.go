package compiler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// CacheFileName is the cache file written under the project's cache dir.
const CacheFileName = "solidity-files-cache.json"

const cacheFormat = "taskforge-cache-1"

// Cache records a content hash per source file plus a key describing the
// compiler settings. A project is stale when either changes.
type Cache struct {
	Format string                `json:"_format"`
	Key    string                `json:"key"`
	Files  map[string]CacheEntry `json:"files"`

	path string
}

// CacheEntry is the cached state of one source file.
type CacheEntry struct {
	ContentHash string `json:"contentHash"`
}

// LoadCache reads the cache at path. A missing file yields an empty cache.
func LoadCache(path string) (*Cache, error) {
	c := &Cache{Format: cacheFormat, Files: map[string]CacheEntry{}, path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading compile cache: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing compile cache %s: %w", path, err)
	}
	if c.Format != cacheFormat || c.Files == nil {
		return &Cache{Format: cacheFormat, Files: map[string]CacheEntry{}, path: path}, nil
	}
	c.path = path
	return c, nil
}

// Changed returns the files (relative to root) whose content differs from
// the cache, plus every file when key differs. Files that were removed since
// the last run are reported too.
func (c *Cache) Changed(root string, files []string, key string) ([]string, error) {
	hashes, err := hashFiles(root, files)
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, f := range files {
		entry, ok := c.Files[f]
		if c.Key != key || !ok || entry.ContentHash != hashes[f] {
			changed = append(changed, f)
		}
	}
	for f := range c.Files {
		if _, ok := hashes[f]; !ok {
			changed = append(changed, f)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Update replaces the cache contents with the current state of files.
func (c *Cache) Update(root string, files []string, key string) error {
	hashes, err := hashFiles(root, files)
	if err != nil {
		return err
	}
	c.Key = key
	c.Files = make(map[string]CacheEntry, len(hashes))
	for f, h := range hashes {
		c.Files[f] = CacheEntry{ContentHash: h}
	}
	return nil
}

// Save writes the cache back to the path it was loaded from.
func (c *Cache) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling compile cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("writing compile cache: %w", err)
	}
	return nil
}

func hashFiles(root string, files []string) (map[string]string, error) {
	hashes := make(map[string]string, len(files))
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(root, f))
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", f, err)
		}
		sum := blake3.Sum256(data)
		hashes[f] = hex.EncodeToString(sum[:])
	}
	return hashes, nil
}
