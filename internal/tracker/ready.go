package tracker

import (
	"fmt"
	"sort"

	"github.com/kingrea/weekflow/internal/tasktype"
)

// ReadyQuery narrows ready-task discovery. An empty Role matches every role;
// Limit <= 0 returns everything.
type ReadyQuery struct {
	Role  string
	Limit int
}

// SkippedGroup records a group whose document could not be loaded.
type SkippedGroup struct {
	Group string
	Err   error
}

// ReadyResult is the outcome of ReadyTasks. Total counts every ready task
// before the limit was applied.
type ReadyResult struct {
	Tasks   []ReadyTask
	Total   int
	Skipped []SkippedGroup
}

// ReadyTasks enumerates every pending task across all groups whose
// dependencies are satisfied. Results are ordered by group, task type and
// item name; the limit is applied after the full scan.
func (t *Tracker) ReadyTasks(q ReadyQuery) (ReadyResult, error) {
	groups, err := t.store.Groups()
	if err != nil {
		return ReadyResult{}, fmt.Errorf("tracker: list groups: %w", err)
	}
	var result ReadyResult
	for _, group := range groups {
		doc, err := t.Load(group)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedGroup{Group: group, Err: err})
			continue
		}
		result.Tasks = append(result.Tasks, t.readyIn(group, doc, q.Role)...)
	}
	sort.SliceStable(result.Tasks, func(i, j int) bool {
		a, b := result.Tasks[i], result.Tasks[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.TaskType != b.TaskType {
			return a.TaskType < b.TaskType
		}
		return a.Item < b.Item
	})
	result.Total = len(result.Tasks)
	if q.Limit > 0 && len(result.Tasks) > q.Limit {
		result.Tasks = result.Tasks[:q.Limit]
	}
	return result, nil
}

func (t *Tracker) readyIn(group string, doc *GroupTracker, role string) []ReadyTask {
	var ready []ReadyTask
	consider := func(item, taskType string, rec *TaskRecord) {
		if rec.Status != StatusPending {
			return
		}
		def, err := t.registry.Lookup(taskType)
		if err != nil || !tasktype.MatchesRole(def.Role, role) {
			return
		}
		if def.IsGroupLevel() != (item == "") {
			return
		}
		if !CanStart(doc, item, def) {
			return
		}
		ready = append(ready, ReadyTask{Group: group, Item: item, TaskType: taskType, Role: def.Role})
	}
	for _, name := range doc.ActiveItemNames() {
		it := doc.Items[name]
		for _, taskType := range it.TaskTypes() {
			rec, _ := it.Get(taskType)
			if rec != nil {
				consider(name, taskType, rec)
			}
		}
	}
	for _, taskType := range doc.GroupTasks.TaskTypes() {
		if rec, ok := doc.GroupTasks.Get(taskType); ok {
			consider("", taskType, rec)
		}
	}
	return ready
}

// PendingItems lists the non-removed items of group whose taskType record is
// pending and startable, sorted by name.
func (t *Tracker) PendingItems(group, taskType string) ([]string, error) {
	def, err := t.registry.Lookup(taskType)
	if err != nil {
		return nil, taskError(ErrInvalidTaskType, group, "", taskType, "")
	}
	if def.IsGroupLevel() {
		return nil, nil
	}
	doc, err := t.Load(group)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range doc.ActiveItemNames() {
		rec, ok := doc.Items[name].Get(taskType)
		if ok && rec.Status == StatusPending && CanStart(doc, name, def) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Progress counts task statuses for group, excluding removed items. An empty
// taskType counts every item and group-level task; otherwise only records of
// that type are counted.
func (t *Tracker) Progress(group, taskType string) (Progress, error) {
	if taskType != "" && !t.registry.Has(taskType) {
		return Progress{}, taskError(ErrInvalidTaskType, group, "", taskType, "")
	}
	doc, err := t.Load(group)
	if err != nil {
		return Progress{}, err
	}
	return Tally(doc, taskType), nil
}

// Tally computes Progress over an already loaded document.
func Tally(doc *GroupTracker, taskType string) Progress {
	var p Progress
	if doc == nil {
		return p
	}
	for _, name := range doc.ActiveItemNames() {
		for typ, rec := range doc.Items[name].Tasks {
			if rec != nil && (taskType == "" || typ == taskType) {
				p.add(rec.Status)
			}
		}
	}
	for typ, rec := range doc.GroupTasks {
		if rec != nil && (taskType == "" || typ == taskType) {
			p.add(rec.Status)
		}
	}
	return p
}

// GroupSummary is a per-group snapshot used by status views.
type GroupSummary struct {
	Group   string
	Items   int
	Removed int
	Overall Progress
	ByType  map[string]Progress
	Err     error
}

// Summaries returns a snapshot of every stored group. Groups that fail to load
// are reported with Err set rather than aborting the listing.
func (t *Tracker) Summaries() ([]GroupSummary, error) {
	groups, err := t.store.Groups()
	if err != nil {
		return nil, fmt.Errorf("tracker: list groups: %w", err)
	}
	out := make([]GroupSummary, 0, len(groups))
	for _, group := range groups {
		doc, err := t.Load(group)
		if err != nil {
			out = append(out, GroupSummary{Group: group, Err: err})
			continue
		}
		out = append(out, t.summarize(group, doc))
	}
	return out, nil
}

func (t *Tracker) summarize(group string, doc *GroupTracker) GroupSummary {
	s := GroupSummary{
		Group:   group,
		Items:   len(doc.ActiveItemNames()),
		Removed: len(doc.Items) - len(doc.ActiveItemNames()),
		Overall: Tally(doc, ""),
		ByType:  map[string]Progress{},
	}
	for _, name := range t.registry.Names() {
		s.ByType[name] = Tally(doc, name)
	}
	return s
}
