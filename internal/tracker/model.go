package tracker

import (
	"sort"
	"time"
)

// Status enumerates the lifecycle of a single task record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether the status stamps completed_at.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	s := Status(value)
	return s, s.Valid()
}

// TaskRecord is the persisted state of one task type against one item or group.
type TaskRecord struct {
	Status       Status     `yaml:"status" json:"status"`
	StartedAt    *time.Time `yaml:"started_at" json:"started_at"`
	CompletedAt  *time.Time `yaml:"completed_at" json:"completed_at"`
	OutputFile   *string    `yaml:"output_file" json:"output_file"`
	ErrorMessage *string    `yaml:"error_message" json:"error_message"`
	RetryCount   int        `yaml:"retry_count" json:"retry_count"`
	Role         *string    `yaml:"role" json:"role"`
}

// NewRecord returns a pending record owned by role.
func NewRecord(role string) *TaskRecord {
	rec := &TaskRecord{Status: StatusPending}
	if role != "" {
		rec.Role = &role
	}
	return rec
}

// Clone returns a deep copy of the record.
func (r *TaskRecord) Clone() *TaskRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.StartedAt = cloneTime(r.StartedAt)
	out.CompletedAt = cloneTime(r.CompletedAt)
	out.OutputFile = cloneString(r.OutputFile)
	out.ErrorMessage = cloneString(r.ErrorMessage)
	out.Role = cloneString(r.Role)
	return &out
}

// ItemTasks holds the task records of a single catalog item.
type ItemTasks struct {
	Tasks   map[string]*TaskRecord `yaml:"tasks" json:"tasks"`
	Removed bool                   `yaml:"removed" json:"removed"`
}

// Get returns the record for taskType.
func (it *ItemTasks) Get(taskType string) (*TaskRecord, bool) {
	if it == nil || it.Tasks == nil {
		return nil, false
	}
	rec, ok := it.Tasks[taskType]
	return rec, ok && rec != nil
}

// Set stores rec under taskType.
func (it *ItemTasks) Set(taskType string, rec *TaskRecord) {
	if it.Tasks == nil {
		it.Tasks = map[string]*TaskRecord{}
	}
	it.Tasks[taskType] = rec
}

// TaskTypes returns the task types tracked for the item, sorted.
func (it *ItemTasks) TaskTypes() []string {
	return sortedKeys(it.Tasks)
}

// GroupTasks holds group-level task records.
type GroupTasks map[string]*TaskRecord

// Get returns the record for taskType.
func (g GroupTasks) Get(taskType string) (*TaskRecord, bool) {
	rec, ok := g[taskType]
	return rec, ok && rec != nil
}

// Set stores rec under taskType.
func (g GroupTasks) Set(taskType string, rec *TaskRecord) {
	g[taskType] = rec
}

// TaskTypes returns the tracked group-level task types, sorted.
func (g GroupTasks) TaskTypes() []string {
	return sortedKeys(g)
}

// Metadata is bookkeeping stored alongside a group tracker.
type Metadata struct {
	Group        string            `yaml:"group,omitempty" json:"group,omitempty"`
	CreatedAt    *time.Time        `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	LastSynced   *time.Time        `yaml:"last_synced,omitempty" json:"last_synced,omitempty"`
	ETLItemCount *int              `yaml:"etl_item_count,omitempty" json:"etl_item_count,omitempty"`
	Extra        map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// GroupTracker is the whole persisted document for one group.
type GroupTracker struct {
	Items      map[string]*ItemTasks `yaml:"items" json:"items"`
	GroupTasks GroupTasks            `yaml:"group_tasks" json:"group_tasks"`
	Metadata   Metadata              `yaml:"metadata" json:"metadata"`
}

// Item returns the tasks of a named item.
func (t *GroupTracker) Item(name string) (*ItemTasks, bool) {
	if t == nil || t.Items == nil {
		return nil, false
	}
	it, ok := t.Items[name]
	return it, ok && it != nil
}

// SetItem stores item tasks under name.
func (t *GroupTracker) SetItem(name string, it *ItemTasks) {
	if t.Items == nil {
		t.Items = map[string]*ItemTasks{}
	}
	t.Items[name] = it
}

// ItemNames returns all item names (removed included), sorted.
func (t *GroupTracker) ItemNames() []string {
	return sortedKeys(t.Items)
}

// ActiveItemNames returns the non-removed item names, sorted.
func (t *GroupTracker) ActiveItemNames() []string {
	var names []string
	for _, name := range t.ItemNames() {
		if it := t.Items[name]; it != nil && !it.Removed {
			names = append(names, name)
		}
	}
	return names
}

// normalize fills nil maps after decoding so callers never see them.
func (t *GroupTracker) normalize() {
	if t.Items == nil {
		t.Items = map[string]*ItemTasks{}
	}
	for name, it := range t.Items {
		if it == nil {
			it = &ItemTasks{}
			t.Items[name] = it
		}
		if it.Tasks == nil {
			it.Tasks = map[string]*TaskRecord{}
		}
	}
	if t.GroupTasks == nil {
		t.GroupTasks = GroupTasks{}
	}
}

// Normalize prepares a freshly decoded document for use. Stores call it
// after decoding.
func Normalize(t *GroupTracker) *GroupTracker {
	if t == nil {
		t = &GroupTracker{}
	}
	t.normalize()
	return t
}

// Progress summarizes task statuses for a group.
type Progress struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// CompletionPercentage returns completed/total as a percentage.
func (p Progress) CompletionPercentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

func (p *Progress) add(s Status) {
	p.Total++
	switch s {
	case StatusPending:
		p.Pending++
	case StatusInProgress:
		p.InProgress++
	case StatusCompleted:
		p.Completed++
	case StatusFailed:
		p.Failed++
	case StatusSkipped:
		p.Skipped++
	}
}

// ReadyTask is a pending task whose dependencies are satisfied.
type ReadyTask struct {
	Group    string `json:"group"`
	Item     string `json:"item,omitempty"`
	TaskType string `json:"task_type"`
	Role     string `json:"role"`
}

// GroupLevel reports whether the task targets the whole group.
func (r ReadyTask) GroupLevel() bool {
	return r.Item == ""
}

// String renders group/item/type for logs.
func (r ReadyTask) String() string {
	if r.Item == "" {
		return r.Group + "/" + r.TaskType
	}
	return r.Group + "/" + r.Item + "/" + r.TaskType
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
