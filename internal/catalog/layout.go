// Package catalog reads the upstream item feed: the landscape document that
// lists every catalog entry, and the per-group item lists derived from it.
// It also owns the on-disk layout of group directories.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/weekflow/internal/fsutil"
)

// ItemListFile is the per-group bootstrap list written by extraction.
const ItemListFile = "tasks.yaml"

// ErrNoItems is returned when a group has no item list to read.
var ErrNoItems = errors.New("catalog: no item list")

// GroupDir maps a group key to its directory name. Single upper-case letters
// become week directories ("A" -> "00-A", "Z" -> "25-Z"); anything else is
// used verbatim.
func GroupDir(group string) string {
	if isLetter(group) {
		return fmt.Sprintf("%02d-%s", group[0]-'A', group)
	}
	return group
}

// GroupFromDir is the inverse of GroupDir.
func GroupFromDir(name string) string {
	if len(name) == 4 && name[2] == '-' && isLetter(name[3:]) {
		if fmt.Sprintf("%02d", name[3]-'A') == name[:2] {
			return name[3:]
		}
	}
	return name
}

// Letters returns the week group keys A..Z.
func Letters() []string {
	out := make([]string, 0, 26)
	for c := 'A'; c <= 'Z'; c++ {
		out = append(out, string(c))
	}
	return out
}

func isLetter(s string) bool {
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z'
}

// ItemListPath returns the bootstrap list location for group under dataDir.
func ItemListPath(dataDir, group string) string {
	return filepath.Join(dataDir, GroupDir(group), ItemListFile)
}

// ReadItemList loads a bootstrap list. Entries may be plain strings or
// mappings with a name key. A missing file yields ErrNoItems.
func ReadItemList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoItems, path)
		}
		return nil, err
	}
	var raw []any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	names := make([]string, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			names = append(names, strings.TrimSpace(v))
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				names = append(names, strings.TrimSpace(name))
			}
		}
	}
	return names, nil
}

// WriteItemList stores names as the bootstrap list for group.
func WriteItemList(dataDir, group string, names []string) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	data, err := yaml.Marshal(sorted)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(ItemListPath(dataDir, group), data, 0o644)
}
