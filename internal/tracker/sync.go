package tracker

import (
	"errors"
	"fmt"
	"strings"
)

// SyncResult describes what a reconciliation changed.
type SyncResult struct {
	Group     string
	Created   bool
	Added     []string
	Restored  []string
	Removed   []string
	Persisted bool
	ItemCount int
}

// Changed reports whether any item membership changed.
func (r SyncResult) Changed() bool {
	return r.Created || len(r.Added) > 0 || len(r.Restored) > 0 || len(r.Removed) > 0
}

// Sync reconciles the group's items with an upstream name list. New names are
// added with the default task set, removed names are soft-deleted and names
// that reappear are reinstated with their history intact. The document is
// written only when something changed, so repeated calls with the same list
// leave last_synced untouched.
func (t *Tracker) Sync(group string, names []string) (SyncResult, error) {
	if err := ValidateGroup(group); err != nil {
		return SyncResult{}, err
	}
	upstream := dedupe(names)
	result := SyncResult{Group: group, ItemCount: len(upstream)}

	unlock := t.lock(group)
	defer unlock()

	exists, err := t.store.Exists(group)
	if err != nil {
		return SyncResult{}, fmt.Errorf("tracker: sync %s: %w", group, err)
	}
	var doc *GroupTracker
	if exists {
		doc, err = t.store.Load(group)
		if err != nil {
			return SyncResult{}, fmt.Errorf("tracker: sync %s: %w", group, err)
		}
		doc = Normalize(doc)
	} else {
		doc = Seed(t.registry, group, nil, t.now())
		result.Created = true
	}

	wanted := make(map[string]struct{}, len(upstream))
	for _, name := range upstream {
		wanted[name] = struct{}{}
		it, ok := doc.Item(name)
		switch {
		case !ok:
			doc.SetItem(name, newItemTasks(t.registry))
			result.Added = append(result.Added, name)
		case it.Removed:
			it.Removed = false
			result.Restored = append(result.Restored, name)
		}
	}
	for _, name := range doc.ItemNames() {
		if _, ok := wanted[name]; ok {
			continue
		}
		it := doc.Items[name]
		if !it.Removed {
			it.Removed = true
			result.Removed = append(result.Removed, name)
		}
	}

	meta := doc.Metadata
	drift := meta.LastSynced == nil || meta.ETLItemCount == nil || *meta.ETLItemCount != len(upstream)
	if !result.Changed() && !drift {
		return result, nil
	}

	now := t.now()
	count := len(upstream)
	doc.Metadata.LastSynced = &now
	doc.Metadata.ETLItemCount = &count
	if doc.Metadata.Group == "" {
		doc.Metadata.Group = group
	}
	if err := t.store.Save(group, doc); err != nil {
		return SyncResult{}, fmt.Errorf("tracker: sync %s: %w", group, err)
	}
	result.Persisted = true
	return result, nil
}

// Bootstrap ensures a tracker exists for group, creating it from items when
// the store holds nothing yet. Existing documents are returned untouched.
func (t *Tracker) Bootstrap(group string, items []string) (*GroupTracker, error) {
	if err := ValidateGroup(group); err != nil {
		return nil, err
	}
	unlock := t.lock(group)
	defer unlock()

	doc, err := t.store.Load(group)
	if err == nil {
		return Normalize(doc), nil
	}
	if !errors.Is(err, ErrGroupNotFound) {
		return nil, err
	}
	doc = Seed(t.registry, group, dedupe(items), t.now())
	if err := t.store.Save(group, doc); err != nil {
		return nil, fmt.Errorf("tracker: bootstrap %s: %w", group, err)
	}
	return doc, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
