// Package filestore persists tracker documents as YAML files, one per group
// directory:
//
//	<root>/<group dir>/tracker.yaml
//	<root>/<group dir>/tasks.yaml   (optional bootstrap list)
//
// Writes are atomic. There is no cross-process locking.
package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/weekflow/internal/catalog"
	"github.com/kingrea/weekflow/internal/fsutil"
	"github.com/kingrea/weekflow/internal/tasktype"
	"github.com/kingrea/weekflow/internal/tracker"
)

// TrackerFile is the document name inside each group directory.
const TrackerFile = "tracker.yaml"

// Store implements tracker.Store on the local filesystem.
type Store struct {
	root     string
	registry *tasktype.Registry
	clock    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source used for bootstrapped trackers.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New returns a store rooted at root. The registry decides the default task
// set of bootstrapped trackers.
func New(root string, registry *tasktype.Registry, opts ...Option) *Store {
	if registry == nil {
		registry = tasktype.Default()
	}
	s := &Store{root: root, registry: registry, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

// GroupDir returns the absolute directory of group.
func (s *Store) GroupDir(group string) string {
	return filepath.Join(s.root, catalog.GroupDir(group))
}

func (s *Store) trackerPath(group string) string {
	return filepath.Join(s.GroupDir(group), TrackerFile)
}

// Exists reports whether tracker.yaml is present for group.
func (s *Store) Exists(group string) (bool, error) {
	_, err := os.Stat(s.trackerPath(group))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Load reads tracker.yaml, bootstrapping it from tasks.yaml on first use.
func (s *Store) Load(group string) (*tracker.GroupTracker, error) {
	data, err := os.ReadFile(s.trackerPath(group))
	if err == nil {
		return decode(data, s.trackerPath(group))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	items, err := catalog.ReadItemList(catalog.ItemListPath(s.root, group))
	if err != nil {
		if errors.Is(err, catalog.ErrNoItems) {
			return nil, fmt.Errorf("%w: %s", tracker.ErrGroupNotFound, group)
		}
		return nil, err
	}
	doc := tracker.Seed(s.registry, group, items, s.clock())
	if err := s.Save(group, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save writes the whole document atomically.
func (s *Store) Save(group string, doc *tracker.GroupTracker) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", group, err)
	}
	if err := fsutil.WriteFileAtomic(s.trackerPath(group), data, 0o644); err != nil {
		return fmt.Errorf("filestore: write %s: %w", group, err)
	}
	return nil
}

// Groups lists every group directory holding a tracker or a bootstrap list.
func (s *Store) Groups() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("filestore: list %s: %w", s.root, err)
	}
	var groups []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())
		if fileExists(filepath.Join(dir, TrackerFile)) || fileExists(filepath.Join(dir, catalog.ItemListFile)) {
			groups = append(groups, catalog.GroupFromDir(entry.Name()))
		}
	}
	sort.Strings(groups)
	return groups, nil
}

func decode(data []byte, path string) (*tracker.GroupTracker, error) {
	var doc tracker.GroupTracker
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w", path, err)
	}
	return tracker.Normalize(&doc), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
