package orchestrator

import (
	"time"

	"github.com/kingrea/weekflow/internal/tracker"
)

// EventKind names the lifecycle points an Observer is told about.
type EventKind string

const (
	EventRoundStarted  EventKind = "round_started"
	EventTaskStarted   EventKind = "task_started"
	EventTaskFinished  EventKind = "task_finished"
	EventRoundFinished EventKind = "round_finished"
	EventRunFinished   EventKind = "run_finished"
)

// Event is a single notification emitted during Run. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind    EventKind
	RunID   string
	Round   int
	Time    time.Time
	Batch   []tracker.ReadyTask
	Task    tracker.ReadyTask
	Outcome *TaskOutcome
	Summary *RoundSummary
	Report  *Report
}

// Observer receives run events. Deliveries are serialized by the
// orchestrator, so implementations need no locking of their own, but they
// must not block for long since dispatch waits on them.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) {
	f(e)
}
