package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/weekflow/internal/tasktype"
)

func TestCanStartItemScopeFollowsDependencies(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X", "Y")

	if !tr.CanStart("A", "X", tasktype.Research) {
		t.Fatalf("research has no dependencies and should be startable")
	}
	if tr.CanStart("A", "X", tasktype.Content) {
		t.Fatalf("content must wait for research")
	}
	mustUpdate(t, tr, "A", "X", tasktype.Research, StatusCompleted)
	if !tr.CanStart("A", "X", tasktype.Content) {
		t.Fatalf("content should start once research completed")
	}
	if tr.CanStart("A", "Y", tasktype.Content) {
		t.Fatalf("Y content must not see X's research")
	}
}

func TestCanStartUnknownInputsAreFalse(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X")
	cases := []struct {
		name                   string
		group, item, taskType string
	}{
		{name: "unknown task type", group: "A", item: "X", taskType: "podcast"},
		{name: "unknown item", group: "A", item: "Nope", taskType: tasktype.Research},
		{name: "unknown group", group: "Q", item: "X", taskType: tasktype.Research},
		{name: "invalid group", group: "../A", item: "X", taskType: tasktype.Research},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tr.CanStart(tc.group, tc.item, tc.taskType) {
				t.Fatalf("expected false")
			}
		})
	}
}

func TestGroupTaskWaitsForEveryActiveItem(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X", "Y")
	for _, item := range []string{"X", "Y"} {
		mustUpdate(t, tr, "A", item, tasktype.Research, StatusCompleted)
	}
	mustUpdate(t, tr, "A", "X", tasktype.Content, StatusCompleted)
	if tr.CanStart("A", "", tasktype.Publish) {
		t.Fatalf("publish must wait for Y content")
	}
	doc, err := tr.Load("A")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, _ := tr.Registry().Lookup(tasktype.Publish)
	if got := Blockers(doc, "", def); len(got) != 1 || got[0] != "Y/content" {
		t.Fatalf("unexpected blockers: %v", got)
	}

	// Removing the straggler unblocks the group task.
	mustSync(t, tr, "A", "X")
	if !tr.CanStart("A", "", tasktype.Publish) {
		t.Fatalf("publish should ignore removed items")
	}
}

func TestGroupTaskWithNoActiveItemsIsReady(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A")
	if !tr.CanStart("A", "", tasktype.Publish) {
		t.Fatalf("empty group should satisfy group-level dependencies")
	}
	res, err := tr.ReadyTasks(ReadyQuery{})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if len(res.Tasks) != 1 || res.Tasks[0].TaskType != tasktype.Publish {
		t.Fatalf("expected only publish ready, got %+v", res.Tasks)
	}
}

func TestUpdateInProgressChecksDependencies(t *testing.T) {
	tr, _, clock := newTrackerHarness(t)
	mustSync(t, tr, "A", "X")

	_, err := tr.Update(UpdateRequest{Group: "A", Item: "X", TaskType: tasktype.Content, Status: StatusInProgress})
	if !errors.Is(err, ErrDependencyNotMet) {
		t.Fatalf("expected ErrDependencyNotMet, got %v", err)
	}
	var taskErr *TaskError
	if !errors.As(err, &taskErr) || taskErr.Item != "X" || taskErr.TaskType != tasktype.Content {
		t.Fatalf("expected task error coordinates, got %#v", err)
	}

	first := clock.now()
	rec := mustUpdate(t, tr, "A", "X", tasktype.Research, StatusInProgress)
	if rec.StartedAt == nil || !rec.StartedAt.Equal(first) {
		t.Fatalf("expected started_at %s, got %v", first, rec.StartedAt)
	}
	clock.advance(time.Minute)
	rec = mustUpdate(t, tr, "A", "X", tasktype.Research, StatusInProgress)
	if !rec.StartedAt.Equal(first) {
		t.Fatalf("started_at should only be stamped once, got %s", rec.StartedAt)
	}
	if rec.CompletedAt != nil {
		t.Fatalf("in_progress must not stamp completed_at")
	}
}

func TestUpdateTerminalStatusesStampCompletion(t *testing.T) {
	for _, status := range []Status{StatusCompleted, StatusFailed, StatusSkipped} {
		t.Run(string(status), func(t *testing.T) {
			tr, _, clock := newTrackerHarness(t)
			mustSync(t, tr, "A", "X")
			rec := mustUpdate(t, tr, "A", "X", tasktype.Research, status)
			if rec.CompletedAt == nil || !rec.CompletedAt.Equal(clock.now()) {
				t.Fatalf("expected completed_at stamped, got %v", rec.CompletedAt)
			}
			if rec.Status != status {
				t.Fatalf("expected status %s, got %s", status, rec.Status)
			}
		})
	}
}

func TestUpdateMergesFields(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X")
	rec, err := tr.Update(UpdateRequest{
		Group:    "A",
		Item:     "X",
		TaskType: tasktype.Research,
		Status:   StatusFailed,
		Fields: Fields{
			FieldErrorMessage: errors.New("timeout"),
			FieldRetryCount:   "2",
			FieldRole:         "night-shift",
			FieldOutputFile:   42,
			"colour":          "blue",
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.ErrorMessage == nil || *rec.ErrorMessage != "timeout" {
		t.Fatalf("unexpected error message: %v", rec.ErrorMessage)
	}
	if rec.RetryCount != 2 {
		t.Fatalf("expected retry count 2, got %d", rec.RetryCount)
	}
	if rec.Role == nil || *rec.Role != "night-shift" {
		t.Fatalf("unexpected role: %v", rec.Role)
	}
	if rec.OutputFile != nil {
		t.Fatalf("wrongly typed output_file should be ignored, got %q", *rec.OutputFile)
	}
}

func TestUpdateErrors(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X")
	cases := []struct {
		name string
		req  UpdateRequest
		want error
	}{
		{name: "invalid type", req: UpdateRequest{Group: "A", Item: "X", TaskType: "podcast", Status: StatusCompleted}, want: ErrInvalidTaskType},
		{name: "missing item", req: UpdateRequest{Group: "A", Item: "Z", TaskType: tasktype.Research, Status: StatusCompleted}, want: ErrItemNotFound},
		{name: "missing group", req: UpdateRequest{Group: "B", Item: "X", TaskType: tasktype.Research, Status: StatusCompleted}, want: ErrGroupNotFound},
		{name: "bad group", req: UpdateRequest{Group: "a/b", Item: "X", TaskType: tasktype.Research, Status: StatusCompleted}, want: ErrInvalidGroup},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tr.Update(tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsUserError(err) {
				t.Fatalf("expected user error classification for %v", err)
			}
		})
	}
}

func TestUpdateCreatesMissingRecordLazily(t *testing.T) {
	store := newMemStore()
	doc := Seed(tasktype.Default(), "A", []string{"X"}, time.Now())
	delete(doc.Items["X"].Tasks, tasktype.Content)
	delete(doc.GroupTasks, tasktype.Publish)
	if err := store.Save("A", doc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tr, err := New(tasktype.Default(), store)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec := mustUpdate(t, tr, "A", "X", tasktype.Content, StatusSkipped)
	if rec.Role == nil || *rec.Role != tasktype.RoleWriter {
		t.Fatalf("expected registry role on lazily created record, got %v", rec.Role)
	}
	rec = mustUpdate(t, tr, "A", "ignored", tasktype.Publish, StatusSkipped)
	if rec.Status != StatusSkipped {
		t.Fatalf("expected group record created, got %+v", rec)
	}
}

func TestResetReturnsTaskToPending(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X")
	if _, err := tr.Update(UpdateRequest{
		Group: "A", Item: "X", TaskType: tasktype.Research, Status: StatusFailed,
		Fields: Fields{FieldErrorMessage: "boom"},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, err := tr.Reset("A", "X", tasktype.Research)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if rec.Status != StatusPending || rec.RetryCount != 1 || rec.ErrorMessage != nil || rec.CompletedAt != nil {
		t.Fatalf("unexpected record after reset: %+v", rec)
	}
	res, err := tr.ReadyTasks(ReadyQuery{Role: tasktype.RoleResearcher})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("expected reset task to be offered again, got %+v", res.Tasks)
	}
}

func TestPublishScenarioReachesFullCompletion(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X", "Y")
	for _, item := range []string{"X", "Y"} {
		mustUpdate(t, tr, "A", item, tasktype.Research, StatusCompleted)
		mustUpdate(t, tr, "A", item, tasktype.Content, StatusCompleted)
	}
	if !tr.CanStart("A", "", tasktype.Publish) {
		t.Fatalf("publish should be startable")
	}
	mustUpdate(t, tr, "A", "", tasktype.Publish, StatusCompleted)

	p, err := tr.Progress("A", "")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Total != 5 || p.Completed != 5 || p.CompletionPercentage() != 100.0 {
		t.Fatalf("unexpected progress: %+v (%.1f%%)", p, p.CompletionPercentage())
	}
}

func TestProgressFiltersByTypeAndSkipsRemoved(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X", "Y", "Z")
	mustUpdate(t, tr, "A", "X", tasktype.Research, StatusCompleted)
	mustUpdate(t, tr, "A", "Z", tasktype.Research, StatusCompleted)
	mustSync(t, tr, "A", "X", "Y")

	p, err := tr.Progress("A", tasktype.Research)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Total != 2 || p.Completed != 1 || p.Pending != 1 {
		t.Fatalf("unexpected research progress: %+v", p)
	}
	p, err = tr.Progress("A", tasktype.Publish)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Total != 1 || p.Pending != 1 {
		t.Fatalf("unexpected publish progress: %+v", p)
	}
	if _, err := tr.Progress("A", "podcast"); !errors.Is(err, ErrInvalidTaskType) {
		t.Fatalf("expected invalid task type, got %v", err)
	}
	if got := (Progress{}).CompletionPercentage(); got != 0 {
		t.Fatalf("empty progress should be 0%%, got %v", got)
	}
}

func TestSyncRemoveAndRestorePreservesHistory(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X", "Y")
	mustUpdate(t, tr, "A", "X", tasktype.Research, StatusCompleted)
	mustUpdate(t, tr, "A", "Y", tasktype.Research, StatusInProgress)

	res := mustSync(t, tr, "A", "Y")
	if len(res.Removed) != 1 || res.Removed[0] != "X" {
		t.Fatalf("expected X removed, got %+v", res)
	}
	doc, _ := tr.Load("A")
	if !doc.Items["X"].Removed {
		t.Fatalf("X should be flagged removed")
	}
	if got := doc.Items["Y"].Tasks[tasktype.Research].Status; got != StatusInProgress {
		t.Fatalf("Y research should be untouched, got %s", got)
	}

	res = mustSync(t, tr, "A", "X", "Y")
	if len(res.Restored) != 1 || res.Restored[0] != "X" {
		t.Fatalf("expected X restored, got %+v", res)
	}
	doc, _ = tr.Load("A")
	x := doc.Items["X"]
	if x.Removed {
		t.Fatalf("X should be active again")
	}
	if got := x.Tasks[tasktype.Research].Status; got != StatusCompleted {
		t.Fatalf("X research history lost, got %s", got)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	tr, store, clock := newTrackerHarness(t)
	first := mustSync(t, tr, "A", "X", "Y", "X")
	if !first.Created || !first.Persisted || len(first.Added) != 2 || first.ItemCount != 2 {
		t.Fatalf("unexpected first sync: %+v", first)
	}
	doc, _ := tr.Load("A")
	synced := *doc.Metadata.LastSynced
	writes := store.writes("A")

	clock.advance(time.Hour)
	second := mustSync(t, tr, "A", "Y", "X")
	if second.Persisted || second.Changed() {
		t.Fatalf("second sync should be a no-op, got %+v", second)
	}
	if store.writes("A") != writes {
		t.Fatalf("expected no additional write, got %d -> %d", writes, store.writes("A"))
	}
	doc, _ = tr.Load("A")
	if !doc.Metadata.LastSynced.Equal(synced) {
		t.Fatalf("last_synced changed: %s -> %s", synced, doc.Metadata.LastSynced)
	}
	if doc.Metadata.ETLItemCount == nil || *doc.Metadata.ETLItemCount != 2 {
		t.Fatalf("unexpected etl item count: %v", doc.Metadata.ETLItemCount)
	}
}

func TestSyncPersistsOnCountDrift(t *testing.T) {
	tr, store, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X")
	doc, _ := tr.Load("A")
	stale := 7
	doc.Metadata.ETLItemCount = &stale
	if err := store.Save("A", doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	res := mustSync(t, tr, "A", "X")
	if res.Changed() || !res.Persisted {
		t.Fatalf("expected drift-only persist, got %+v", res)
	}
}

func TestSyncSeedsGroupTasks(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X")
	doc, err := tr.Load("A")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec, ok := doc.GroupTasks.Get(tasktype.Publish)
	if !ok || rec.Status != StatusPending {
		t.Fatalf("expected pending publish task, got %+v", rec)
	}
	if got := doc.Items["X"].TaskTypes(); len(got) != 2 {
		t.Fatalf("expected default item tasks, got %v", got)
	}
}

func TestBootstrapCreatesOnce(t *testing.T) {
	tr, store, _ := newTrackerHarness(t)
	doc, err := tr.Bootstrap("B", []string{"One", "Two"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(doc.Items) != 2 {
		t.Fatalf("expected two items, got %v", doc.ItemNames())
	}
	if _, err := tr.Bootstrap("B", []string{"Three"}); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if store.writes("B") != 1 {
		t.Fatalf("bootstrap should not overwrite an existing tracker")
	}
}

func TestReadyTasksOrderingFilterAndLimit(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "B", "Kafka", "Argo")
	mustSync(t, tr, "A", "Zed", "Envoy")
	mustUpdate(t, tr, "A", "Envoy", tasktype.Research, StatusCompleted)

	res, err := tr.ReadyTasks(ReadyQuery{})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	got := make([]string, 0, len(res.Tasks))
	for _, task := range res.Tasks {
		got = append(got, task.String())
	}
	want := []string{"A/Envoy/content", "A/Zed/research", "B/Argo/research", "B/Kafka/research"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("unexpected order:\n got %v\nwant %v", got, want)
	}

	res, err = tr.ReadyTasks(ReadyQuery{Role: "RESEARCHER", Limit: 2})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if res.Total != 3 || len(res.Tasks) != 2 {
		t.Fatalf("expected 2 of 3 researcher tasks, got %d of %d", len(res.Tasks), res.Total)
	}
	for _, task := range res.Tasks {
		if task.Role != tasktype.RoleResearcher {
			t.Fatalf("role filter leaked %+v", task)
		}
	}
}

func TestReadyTasksExcludesRemovedAndBlocked(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X", "Y")
	mustSync(t, tr, "A", "Y")
	res, err := tr.ReadyTasks(ReadyQuery{})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	for _, task := range res.Tasks {
		if task.Item == "X" {
			t.Fatalf("removed item offered: %+v", task)
		}
		if !tr.CanStart(task.Group, task.Item, task.TaskType) {
			t.Fatalf("blocked task offered: %+v", task)
		}
	}
	if res.Total != 1 {
		t.Fatalf("expected only Y research, got %+v", res.Tasks)
	}
}

func TestReadyTasksSkipsBrokenGroups(t *testing.T) {
	tr, store, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X")
	store.fail("B", errors.New("corrupt document"))
	res, err := tr.ReadyTasks(ReadyQuery{})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Group != "B" {
		t.Fatalf("expected B skipped, got %+v", res.Skipped)
	}
	if res.Total != 1 {
		t.Fatalf("expected A tasks still listed, got %+v", res.Tasks)
	}
}

func TestPendingItems(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X", "Y", "Z")
	mustUpdate(t, tr, "A", "X", tasktype.Research, StatusCompleted)
	mustUpdate(t, tr, "A", "Y", tasktype.Research, StatusCompleted)
	mustUpdate(t, tr, "A", "Y", tasktype.Content, StatusInProgress)

	got, err := tr.PendingItems("A", tasktype.Content)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 || got[0] != "X" {
		t.Fatalf("expected [X], got %v", got)
	}
	got, err = tr.PendingItems("A", tasktype.Research)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 || got[0] != "Z" {
		t.Fatalf("expected [Z], got %v", got)
	}
}

func TestSummariesReportEveryGroup(t *testing.T) {
	tr, store, _ := newTrackerHarness(t)
	mustSync(t, tr, "A", "X", "Y")
	mustSync(t, tr, "A", "X")
	store.fail("C", errors.New("unreadable"))
	summaries, err := tr.Summaries()
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected two groups, got %+v", summaries)
	}
	a := summaries[0]
	if a.Items != 1 || a.Removed != 1 || a.Overall.Total != 3 {
		t.Fatalf("unexpected summary for A: %+v", a)
	}
	if a.ByType[tasktype.Research].Total != 1 {
		t.Fatalf("unexpected research tally: %+v", a.ByType)
	}
	if summaries[1].Err == nil {
		t.Fatalf("expected C to carry its load error")
	}
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	tr, _, _ := newTrackerHarness(t)
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	mustSync(t, tr, "A", names...)
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(item string) {
			defer wg.Done()
			if _, err := tr.Update(UpdateRequest{Group: "A", Item: item, TaskType: tasktype.Research, Status: StatusCompleted}); err != nil {
				t.Errorf("update %s: %v", item, err)
			}
		}(name)
	}
	wg.Wait()
	p, err := tr.Progress("A", tasktype.Research)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Completed != len(names) {
		t.Fatalf("lost updates: %+v", p)
	}
}

// harness

type testClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

func newTrackerHarness(t *testing.T) (*Tracker, *memStore, *testClock) {
	t.Helper()
	clock := &testClock{cur: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}
	store := newMemStore()
	tr, err := New(tasktype.Default(), store, WithClock(clock.now))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tr, store, clock
}

func mustSync(t *testing.T, tr *Tracker, group string, names ...string) SyncResult {
	t.Helper()
	res, err := tr.Sync(group, names)
	if err != nil {
		t.Fatalf("sync %s: %v", group, err)
	}
	return res
}

func mustUpdate(t *testing.T, tr *Tracker, group, item, taskType string, status Status) TaskRecord {
	t.Helper()
	rec, err := tr.Update(UpdateRequest{Group: group, Item: item, TaskType: taskType, Status: status})
	if err != nil {
		t.Fatalf("update %s/%s/%s -> %s: %v", group, item, taskType, status, err)
	}
	return rec
}

// memStore keeps encoded documents so every Load returns an independent copy.
type memStore struct {
	mu     sync.Mutex
	docs   map[string][]byte
	saves  map[string]int
	broken map[string]error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string][]byte{}, saves: map[string]int{}, broken: map[string]error{}}
}

func (m *memStore) Exists(group string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[group]
	return ok, nil
}

func (m *memStore) Load(group string) (*GroupTracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.broken[group]; ok {
		return nil, err
	}
	data, ok := m.docs[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	var doc GroupTracker
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return Normalize(&doc), nil
}

func (m *memStore) Save(group string, doc *GroupTracker) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[group] = data
	m.saves[group]++
	return nil
}

func (m *memStore) Groups() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]struct{}{}
	for g := range m.docs {
		seen[g] = struct{}{}
	}
	for g := range m.broken {
		seen[g] = struct{}{}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups, nil
}

func (m *memStore) writes(group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[group]
}

func (m *memStore) fail(group string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken[group] = err
}
