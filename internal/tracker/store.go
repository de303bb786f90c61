package tracker

import (
	"time"

	"github.com/kingrea/weekflow/internal/tasktype"
)

// Store persists one tracker document per group. Implementations must write
// whole documents atomically; partial patches are not supported.
type Store interface {
	// Exists reports whether a tracker document is stored for group.
	Exists(group string) (bool, error)
	// Load returns the stored document. When none exists but a bootstrap item
	// list is available, a fresh tracker is created, saved and returned.
	// Otherwise the error wraps ErrGroupNotFound.
	Load(group string) (*GroupTracker, error)
	// Save replaces the stored document for group.
	Save(group string, t *GroupTracker) error
	// Groups lists the groups the store can load (stored or bootstrappable), sorted.
	Groups() ([]string, error)
}

// Seed builds a new tracker for group with every item and group-level
// default task pending. Stores use it to bootstrap from a minimal item list.
func Seed(reg *tasktype.Registry, group string, items []string, now time.Time) *GroupTracker {
	created := now.UTC()
	t := &GroupTracker{
		Items:      map[string]*ItemTasks{},
		GroupTasks: GroupTasks{},
		Metadata: Metadata{
			Group:     group,
			CreatedAt: &created,
		},
	}
	for _, name := range items {
		if name == "" {
			continue
		}
		if _, ok := t.Item(name); ok {
			continue
		}
		t.SetItem(name, newItemTasks(reg))
	}
	for _, def := range reg.GroupDefaults() {
		t.GroupTasks.Set(def.Name, NewRecord(def.Role))
	}
	return t
}

func newItemTasks(reg *tasktype.Registry) *ItemTasks {
	it := &ItemTasks{Tasks: map[string]*TaskRecord{}}
	for _, def := range reg.ItemDefaults() {
		it.Set(def.Name, NewRecord(def.Role))
	}
	return it
}
