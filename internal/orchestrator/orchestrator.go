// Package orchestrator drives tasks through the tracker in bounded rounds.
// Each round collects up to BatchSize ready tasks per role, dispatches them
// all concurrently, and waits for every one to settle before the next round.
// Worker failures are recorded on the task and never abort the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/weekflow/internal/tasktype"
	"github.com/kingrea/weekflow/internal/tracker"
	"github.com/kingrea/weekflow/internal/worker"
)

// Tracker is the subset of *tracker.Tracker the orchestrator drives.
type Tracker interface {
	Registry() *tasktype.Registry
	ReadyTasks(q tracker.ReadyQuery) (tracker.ReadyResult, error)
	Update(req tracker.UpdateRequest) (tracker.TaskRecord, error)
}

// ArtifactWriter persists a worker result and returns the reference stored
// in the task's output_file.
type ArtifactWriter interface {
	Write(ctx context.Context, a worker.Assignment, res worker.Result) (string, error)
}

// Limits bound a run.
type Limits struct {
	// MaxRounds is the hard cap on rounds.
	MaxRounds int
	// BatchSize is the most tasks fetched per role per round.
	BatchSize int
}

// Validate ensures both limits are positive.
func (l Limits) Validate() error {
	if l.MaxRounds < 1 {
		return fmt.Errorf("orchestrator: max rounds must be >= 1, got %d", l.MaxRounds)
	}
	if l.BatchSize < 1 {
		return fmt.Errorf("orchestrator: batch size must be >= 1, got %d", l.BatchSize)
	}
	return nil
}

// StopReason explains why Run returned.
type StopReason string

const (
	// StopDrained means a round found no ready tasks for any role.
	StopDrained StopReason = "drained"
	// StopMaxRounds means the round cap was reached.
	StopMaxRounds StopReason = "max_rounds"
	// StopCanceled means the context was canceled between rounds.
	StopCanceled StopReason = "canceled"
)

// TaskOutcome is the settled state of one dispatched task. Status is pending
// when the task could not be claimed.
type TaskOutcome struct {
	Task       tracker.ReadyTask
	Status     tracker.Status
	OutputFile string
	Err        error
	Duration   time.Duration
}

// RoundSummary aggregates one round.
type RoundSummary struct {
	Number     int
	StartedAt  time.Time
	FinishedAt time.Time
	Dispatched int
	Completed  int
	Failed     int
	Unclaimed  int
	ByRole     map[string]int
	Outcomes   []TaskOutcome
}

// Report describes a whole run.
type Report struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	Limits          Limits
	Roles           []string
	Rounds          []RoundSummary
	Dispatched      int
	Completed       int
	Failed          int
	Unclaimed       int
	Stop            StopReason
	EstimatedTokens int
}

// Orchestrator runs rounds against a tracker.
type Orchestrator struct {
	tracker      Tracker
	capabilities worker.Set
	writer       ArtifactWriter
	roles        []string
	observers    []Observer
	clock        func() time.Time
	newID        func() string

	emitMu sync.Mutex
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithObserver registers observers for run events.
func WithObserver(observers ...Observer) Option {
	return func(o *Orchestrator) {
		for _, obs := range observers {
			if obs != nil {
				o.observers = append(o.observers, obs)
			}
		}
	}
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// New wires an orchestrator. Roles are served in registry declaration order
// and only roles with a capability take part.
func New(t Tracker, capabilities worker.Set, writer ArtifactWriter, opts ...Option) (*Orchestrator, error) {
	if t == nil {
		return nil, fmt.Errorf("orchestrator: tracker is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("orchestrator: artifact writer is required")
	}
	o := &Orchestrator{
		tracker:      t,
		capabilities: capabilities,
		writer:       writer,
		clock:        time.Now,
		newID:        func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	for _, role := range t.Registry().Roles() {
		if _, ok := capabilities.Lookup(role); ok {
			o.roles = append(o.roles, role)
		}
	}
	if len(o.roles) == 0 {
		return nil, fmt.Errorf("orchestrator: no capability registered for any role")
	}
	return o, nil
}

// Roles returns the roles this orchestrator dispatches to, in order.
func (o *Orchestrator) Roles() []string {
	return append([]string(nil), o.roles...)
}

// Run executes rounds until no task is ready, the round cap is hit, or ctx
// is canceled. Cancellation is checked between rounds only; a round in
// flight always completes so no task is left in_progress. The returned error
// is non-nil only for invalid limits or when ready tasks cannot be listed.
func (o *Orchestrator) Run(ctx context.Context, limits Limits) (Report, error) {
	if err := limits.Validate(); err != nil {
		return Report{}, err
	}
	report := Report{
		RunID:           o.newID(),
		StartedAt:       o.now(),
		Limits:          limits,
		Roles:           o.Roles(),
		EstimatedTokens: EstimateTokens(limits.MaxRounds, limits.BatchSize, len(o.roles)),
		Stop:            StopMaxRounds,
	}
	roundCtx := context.WithoutCancel(ctx)

	var runErr error
loop:
	for round := 1; round <= limits.MaxRounds; round++ {
		if ctx.Err() != nil {
			report.Stop = StopCanceled
			break
		}
		batch, err := o.collect(limits.BatchSize)
		if err != nil {
			runErr = err
			break
		}
		if len(batch) == 0 {
			report.Stop = StopDrained
			break loop
		}
		summary := o.dispatch(roundCtx, report.RunID, round, batch)
		report.Rounds = append(report.Rounds, summary)
		report.Dispatched += summary.Dispatched
		report.Completed += summary.Completed
		report.Failed += summary.Failed
		report.Unclaimed += summary.Unclaimed
	}
	report.FinishedAt = o.now()
	o.emit(Event{Kind: EventRunFinished, RunID: report.RunID, Round: len(report.Rounds), Time: report.FinishedAt, Report: &report})
	return report, runErr
}

// collect snapshots ready work for every role before anything is dispatched,
// so tasks unblocked during a round are picked up by the next one.
func (o *Orchestrator) collect(batchSize int) ([]tracker.ReadyTask, error) {
	var batch []tracker.ReadyTask
	for _, role := range o.roles {
		res, err := o.tracker.ReadyTasks(tracker.ReadyQuery{Role: role, Limit: batchSize})
		if err != nil {
			return nil, fmt.Errorf("orchestrator: ready tasks for %s: %w", role, err)
		}
		batch = append(batch, res.Tasks...)
	}
	return batch, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, runID string, round int, batch []tracker.ReadyTask) RoundSummary {
	summary := RoundSummary{
		Number:     round,
		StartedAt:  o.now(),
		Dispatched: len(batch),
		ByRole:     map[string]int{},
		Outcomes:   make([]TaskOutcome, len(batch)),
	}
	o.emit(Event{Kind: EventRoundStarted, RunID: runID, Round: round, Time: summary.StartedAt, Batch: batch})

	var g errgroup.Group
	for i, task := range batch {
		summary.ByRole[task.Role]++
		i, task := i, task
		g.Go(func() error {
			summary.Outcomes[i] = o.execute(ctx, runID, round, task)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range summary.Outcomes {
		switch out.Status {
		case tracker.StatusCompleted:
			summary.Completed++
		case tracker.StatusFailed:
			summary.Failed++
		default:
			summary.Unclaimed++
		}
	}
	summary.FinishedAt = o.now()
	o.emit(Event{Kind: EventRoundFinished, RunID: runID, Round: round, Time: summary.FinishedAt, Summary: &summary})
	return summary
}

// execute runs one task to a settled state. It never returns an error: every
// failure past the claim is written to the task record.
func (o *Orchestrator) execute(ctx context.Context, runID string, round int, task tracker.ReadyTask) (out TaskOutcome) {
	started := o.now()
	out = TaskOutcome{Task: task, Status: tracker.StatusPending}
	defer func() {
		out.Duration = o.now().Sub(started)
		o.emit(Event{Kind: EventTaskFinished, RunID: runID, Round: round, Time: o.now(), Task: task, Outcome: &out})
	}()
	o.emit(Event{Kind: EventTaskStarted, RunID: runID, Round: round, Time: started, Task: task})

	def, err := o.tracker.Registry().Lookup(task.TaskType)
	if err != nil {
		out.Err = err
		return out
	}
	capability, ok := o.capabilities.Lookup(task.Role)
	if !ok {
		out.Err = fmt.Errorf("orchestrator: no capability for role %s", task.Role)
		return out
	}
	claim := tracker.UpdateRequest{
		Group:    task.Group,
		Item:     task.Item,
		TaskType: task.TaskType,
		Status:   tracker.StatusInProgress,
		Fields:   tracker.Fields{tracker.FieldRole: task.Role},
	}
	if _, err := o.tracker.Update(claim); err != nil {
		out.Err = fmt.Errorf("orchestrator: claim %s: %w", task, err)
		return out
	}

	assignment := worker.Assignment{
		RunID:      runID,
		Round:      round,
		Group:      task.Group,
		Item:       task.Item,
		TaskType:   task.TaskType,
		Role:       task.Role,
		Definition: def,
	}
	ref, err := o.perform(ctx, capability, assignment)
	if err != nil {
		return o.fail(task, out, err)
	}
	done := tracker.UpdateRequest{
		Group:    task.Group,
		Item:     task.Item,
		TaskType: task.TaskType,
		Status:   tracker.StatusCompleted,
		Fields:   tracker.Fields{tracker.FieldOutputFile: ref, tracker.FieldErrorMessage: nil},
	}
	if _, err := o.tracker.Update(done); err != nil {
		return o.fail(task, out, fmt.Errorf("record completion: %w", err))
	}
	out.Status = tracker.StatusCompleted
	out.OutputFile = ref
	return out
}

// perform calls the capability and the writer, converting panics to errors.
func (o *Orchestrator) perform(ctx context.Context, capability worker.Capability, a worker.Assignment) (ref string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	res, err := capability.Perform(ctx, a)
	if err != nil {
		return "", err
	}
	ref, err = o.writer.Write(ctx, a, res)
	if err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return ref, nil
}

func (o *Orchestrator) fail(task tracker.ReadyTask, out TaskOutcome, cause error) TaskOutcome {
	out.Status = tracker.StatusFailed
	out.Err = cause
	_, err := o.tracker.Update(tracker.UpdateRequest{
		Group:    task.Group,
		Item:     task.Item,
		TaskType: task.TaskType,
		Status:   tracker.StatusFailed,
		Fields:   tracker.Fields{tracker.FieldErrorMessage: cause.Error()},
	})
	if err != nil {
		out.Err = errors.Join(cause, fmt.Errorf("orchestrator: record failure: %w", err))
	}
	return out
}

func (o *Orchestrator) emit(e Event) {
	if len(o.observers) == 0 {
		return
	}
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	for _, obs := range o.observers {
		obs.Observe(e)
	}
}

func (o *Orchestrator) now() time.Time {
	return o.clock().UTC()
}
