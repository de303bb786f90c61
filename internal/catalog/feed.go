package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Feed supplies upstream item names per group. With a landscape file set it
// derives names from the catalog document; otherwise it reads the per-group
// bootstrap lists under the data directory.
type Feed struct {
	dataDir   string
	landscape string
	cache     *IndexCache
}

// FeedOption customizes a Feed.
type FeedOption func(*Feed)

// WithLandscape reads items from the landscape document at path.
func WithLandscape(path string) FeedOption {
	return func(f *Feed) {
		f.landscape = path
	}
}

// WithCache shares an index cache between feeds.
func WithCache(cache *IndexCache) FeedOption {
	return func(f *Feed) {
		if cache != nil {
			f.cache = cache
		}
	}
}

// NewFeed returns a feed rooted at dataDir.
func NewFeed(dataDir string, opts ...FeedOption) *Feed {
	f := &Feed{dataDir: dataDir}
	for _, opt := range opts {
		opt(f)
	}
	if f.cache == nil {
		f.cache = NewIndexCache(0)
	}
	return f
}

// Items returns the upstream names for group.
func (f *Feed) Items(group string) ([]string, error) {
	if f.landscape == "" {
		return ReadItemList(ItemListPath(f.dataDir, group))
	}
	idx, err := f.Index()
	if err != nil {
		return nil, err
	}
	return idx.Items(group), nil
}

// Groups lists the groups the feed can supply.
func (f *Feed) Groups() ([]string, error) {
	if f.landscape != "" {
		idx, err := f.Index()
		if err != nil {
			return nil, err
		}
		return idx.Groups(), nil
	}
	entries, err := os.ReadDir(f.dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var groups []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(f.dataDir, entry.Name(), ItemListFile)); err == nil {
			groups = append(groups, GroupFromDir(entry.Name()))
		}
	}
	sort.Strings(groups)
	return groups, nil
}

// Index parses the landscape document, reusing the cached index while the
// file's size and modification time are unchanged.
func (f *Feed) Index() (Index, error) {
	if f.landscape == "" {
		return nil, fmt.Errorf("catalog: no landscape configured")
	}
	info, err := os.Stat(f.landscape)
	if err != nil {
		return nil, fmt.Errorf("catalog: stat landscape: %w", err)
	}
	key := KeyFor(f.landscape, info.Size(), info.ModTime())
	if idx, ok := f.cache.Get(key); ok {
		return idx, nil
	}
	data, err := os.ReadFile(f.landscape)
	if err != nil {
		return nil, fmt.Errorf("catalog: read landscape: %w", err)
	}
	doc, err := ParseLandscape(data)
	if err != nil {
		return nil, err
	}
	idx := BuildIndex(doc)
	f.cache.Put(key, idx)
	return idx, nil
}

// Export writes a bootstrap list for every group in the landscape index.
func (f *Feed) Export() ([]string, error) {
	idx, err := f.Index()
	if err != nil {
		return nil, err
	}
	groups := idx.Groups()
	for _, group := range groups {
		if err := WriteItemList(f.dataDir, group, idx.Items(group)); err != nil {
			return nil, fmt.Errorf("catalog: export %s: %w", group, err)
		}
	}
	return groups, nil
}
