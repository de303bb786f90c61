package catalog

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Landscape is the subset of the upstream catalog document the feed reads.
type Landscape struct {
	Categories []Category `yaml:"landscape"`
}

// Category groups subcategories.
type Category struct {
	Name          string        `yaml:"name"`
	Subcategories []Subcategory `yaml:"subcategories"`
}

// Subcategory lists catalog entries.
type Subcategory struct {
	Name  string  `yaml:"name"`
	Items []Entry `yaml:"items"`
}

// Entry is a single catalog item.
type Entry struct {
	Name    string `yaml:"name"`
	Project string `yaml:"project,omitempty"`
	RepoURL string `yaml:"repo_url,omitempty"`
}

// Eligible reports whether the entry should become a tracked item: it has a
// repository and is not archived.
func (e Entry) Eligible() bool {
	return strings.TrimSpace(e.Name) != "" && e.RepoURL != "" && e.Project != "archived"
}

// ParseLandscape decodes a landscape document.
func ParseLandscape(data []byte) (*Landscape, error) {
	var doc Landscape
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse landscape: %w", err)
	}
	return &doc, nil
}

// Index maps each group to its sorted item names.
type Index map[string][]string

// Items returns the names indexed under group.
func (idx Index) Items(group string) []string {
	return append([]string(nil), idx[group]...)
}

// Groups returns the non-empty groups, sorted.
func (idx Index) Groups() []string {
	groups := make([]string, 0, len(idx))
	for g, names := range idx {
		if len(names) > 0 {
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)
	return groups
}

// BuildIndex partitions eligible entries by the upper-case first letter of
// their name. Entries starting with anything else are dropped. A name listed
// under several subcategories is indexed once.
func BuildIndex(doc *Landscape) Index {
	idx := Index{}
	seen := map[string]struct{}{}
	if doc == nil {
		return idx
	}
	for _, c := range doc.Categories {
		for _, sub := range c.Subcategories {
			for _, entry := range sub.Items {
				if !entry.Eligible() {
					continue
				}
				name := strings.TrimSpace(entry.Name)
				group := name[:1]
				if !isLetter(group) {
					continue
				}
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				idx[group] = append(idx[group], name)
			}
		}
	}
	for g := range idx {
		sort.Strings(idx[g])
	}
	return idx
}
