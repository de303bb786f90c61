// Package tracker owns the per-group task graph: the persisted document, the
// dependency checks over it, and every mutation (status updates and upstream
// reconciliation). Mutations always load, modify and save a whole document.
package tracker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/weekflow/internal/tasktype"
)

// Tracker coordinates the task type registry with a Store.
type Tracker struct {
	store    Store
	registry *tasktype.Registry
	clock    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// New wires a tracker to its registry and store.
func New(registry *tasktype.Registry, store Store, opts ...Option) (*Tracker, error) {
	if registry == nil {
		return nil, fmt.Errorf("tracker: task type registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("tracker: store is required")
	}
	t := &Tracker{
		store:    store,
		registry: registry,
		clock:    time.Now,
		locks:    map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Registry exposes the task type registry the tracker validates against.
func (t *Tracker) Registry() *tasktype.Registry {
	return t.registry
}

// Exists reports whether a tracker document exists for group.
func (t *Tracker) Exists(group string) (bool, error) {
	if err := ValidateGroup(group); err != nil {
		return false, err
	}
	return t.store.Exists(group)
}

// Groups lists the groups known to the store.
func (t *Tracker) Groups() ([]string, error) {
	return t.store.Groups()
}

// Load returns the current document for group.
func (t *Tracker) Load(group string) (*GroupTracker, error) {
	if err := ValidateGroup(group); err != nil {
		return nil, err
	}
	doc, err := t.store.Load(group)
	if err != nil {
		return nil, err
	}
	return Normalize(doc), nil
}

// CanStart reports whether taskType may start for item (ignored for
// group-level types). Unknown task types, unknown items and groups that
// cannot be loaded all yield false.
func (t *Tracker) CanStart(group, item, taskType string) bool {
	def, err := t.registry.Lookup(taskType)
	if err != nil {
		return false
	}
	doc, err := t.Load(group)
	if err != nil {
		return false
	}
	return CanStart(doc, scopedItem(def, item), def)
}

// Fields carries optional record attributes for Update. Recognized keys are
// output_file, error_message, retry_count and role; anything else is ignored.
type Fields map[string]any

// Field keys understood by Update.
const (
	FieldOutputFile   = "output_file"
	FieldErrorMessage = "error_message"
	FieldRetryCount   = "retry_count"
	FieldRole         = "role"
)

// UpdateRequest describes a single state machine transition.
type UpdateRequest struct {
	Group    string
	Item     string
	TaskType string
	Status   Status
	Fields   Fields
}

// Update applies a status transition and persists the tracker. Only the move
// to in_progress re-checks dependencies; terminal statuses are trusted from
// the caller.
func (t *Tracker) Update(req UpdateRequest) (TaskRecord, error) {
	def, err := t.registry.Lookup(req.TaskType)
	if err != nil {
		return TaskRecord{}, taskError(ErrInvalidTaskType, req.Group, req.Item, req.TaskType, "")
	}
	if !req.Status.Valid() {
		return TaskRecord{}, fmt.Errorf("tracker: invalid status %q", req.Status)
	}
	unlock := t.lock(req.Group)
	defer unlock()

	doc, err := t.Load(req.Group)
	if err != nil {
		return TaskRecord{}, err
	}
	item := scopedItem(def, req.Item)
	rec, err := t.locate(doc, req.Group, item, def)
	if err != nil {
		return TaskRecord{}, err
	}
	if req.Status == StatusInProgress && !CanStart(doc, item, def) {
		detail := "waiting on " + strings.Join(Blockers(doc, item, def), ", ")
		return TaskRecord{}, taskError(ErrDependencyNotMet, req.Group, item, def.Name, detail)
	}

	now := t.now()
	rec.Status = req.Status
	if req.Status == StatusInProgress && rec.StartedAt == nil {
		rec.StartedAt = &now
	}
	if req.Status.Terminal() {
		rec.CompletedAt = &now
	}
	applyFields(rec, req.Fields)

	if err := t.store.Save(req.Group, doc); err != nil {
		return TaskRecord{}, fmt.Errorf("tracker: save %s: %w", req.Group, err)
	}
	return *rec.Clone(), nil
}

// Reset returns a task to pending so the orchestrator offers it again. It
// bumps retry_count and clears timestamps and the stored error. This is an
// administrative operation; the orchestrator never calls it.
func (t *Tracker) Reset(group, item, taskType string) (TaskRecord, error) {
	def, err := t.registry.Lookup(taskType)
	if err != nil {
		return TaskRecord{}, taskError(ErrInvalidTaskType, group, item, taskType, "")
	}
	unlock := t.lock(group)
	defer unlock()

	doc, err := t.Load(group)
	if err != nil {
		return TaskRecord{}, err
	}
	item = scopedItem(def, item)
	rec, err := t.locate(doc, group, item, def)
	if err != nil {
		return TaskRecord{}, err
	}
	rec.Status = StatusPending
	rec.StartedAt = nil
	rec.CompletedAt = nil
	rec.ErrorMessage = nil
	rec.RetryCount++
	if err := t.store.Save(group, doc); err != nil {
		return TaskRecord{}, fmt.Errorf("tracker: save %s: %w", group, err)
	}
	return *rec.Clone(), nil
}

// locate finds the record for def, creating it on first reference.
func (t *Tracker) locate(doc *GroupTracker, group, item string, def tasktype.Definition) (*TaskRecord, error) {
	if def.IsGroupLevel() {
		rec, ok := doc.GroupTasks.Get(def.Name)
		if !ok {
			rec = NewRecord(def.Role)
			doc.GroupTasks.Set(def.Name, rec)
		}
		return rec, nil
	}
	it, ok := doc.Item(item)
	if !ok {
		return nil, taskError(ErrItemNotFound, group, item, def.Name, "")
	}
	rec, ok := it.Get(def.Name)
	if !ok {
		rec = NewRecord(def.Role)
		it.Set(def.Name, rec)
	}
	return rec, nil
}

// lock serializes read-modify-write cycles on one group within this process.
func (t *Tracker) lock(group string) func() {
	t.mu.Lock()
	m, ok := t.locks[group]
	if !ok {
		m = &sync.Mutex{}
		t.locks[group] = m
	}
	t.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (t *Tracker) now() time.Time {
	if t.clock == nil {
		return time.Now().UTC()
	}
	return t.clock().UTC()
}

func scopedItem(def tasktype.Definition, item string) string {
	if def.IsGroupLevel() {
		return ""
	}
	return item
}

func applyFields(rec *TaskRecord, fields Fields) {
	for key, value := range fields {
		switch key {
		case FieldOutputFile:
			if s, ok := optionalString(value); ok {
				rec.OutputFile = s
			}
		case FieldErrorMessage:
			if s, ok := optionalString(value); ok {
				rec.ErrorMessage = s
			}
		case FieldRole:
			if s, ok := optionalString(value); ok {
				rec.Role = s
			}
		case FieldRetryCount:
			if n, ok := intValue(value); ok {
				rec.RetryCount = n
			}
		}
	}
}

func optionalString(value any) (*string, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case string:
		return &v, true
	case *string:
		if v == nil {
			return nil, true
		}
		s := *v
		return &s, true
	case error:
		s := v.Error()
		return &s, true
	case fmt.Stringer:
		s := v.String()
		return &s, true
	}
	return nil, false
}

func intValue(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// IsUserError reports whether err is one of the tracker's caller-facing
// sentinels rather than an I/O failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidTaskType) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrDependencyNotMet) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrInvalidGroup)
}
