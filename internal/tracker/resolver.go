package tracker

import (
	"github.com/kingrea/weekflow/internal/tasktype"
)

// CanStart evaluates whether def may move to in_progress for item (or for the
// whole group when def is group-scoped). It never mutates t.
//
// Item scope: every dependency is completed for that same item; an unknown
// item is never startable. Group scope: every dependency is completed for
// all non-removed items; a group with no active items is trivially ready.
func CanStart(t *GroupTracker, item string, def tasktype.Definition) bool {
	if t == nil {
		return false
	}
	if !def.IsGroupLevel() && !hasItem(t, item) {
		return false
	}
	return len(Blockers(t, item, def)) == 0
}

// Blockers lists "item/dependency" references that keep def from starting.
// Group-level blockers are reported per item; an unknown item yields nil.
func Blockers(t *GroupTracker, item string, def tasktype.Definition) []string {
	if t == nil || len(def.DependsOn) == 0 {
		return nil
	}
	var blockers []string
	if def.IsGroupLevel() {
		for _, name := range t.ActiveItemNames() {
			it := t.Items[name]
			for _, dep := range def.DependsOn {
				if !completed(it, dep) {
					blockers = append(blockers, name+"/"+dep)
				}
			}
		}
		return blockers
	}
	it, ok := t.Item(item)
	if !ok {
		return nil
	}
	for _, dep := range def.DependsOn {
		if !completed(it, dep) {
			blockers = append(blockers, item+"/"+dep)
		}
	}
	return blockers
}

func completed(it *ItemTasks, taskType string) bool {
	rec, ok := it.Get(taskType)
	return ok && rec.Status == StatusCompleted
}

func hasItem(t *GroupTracker, item string) bool {
	_, ok := t.Item(item)
	return ok
}
