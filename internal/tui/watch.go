package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/weekflow/internal/logbook"
	"github.com/kingrea/weekflow/internal/orchestrator"
	"github.com/kingrea/weekflow/internal/tracker"
)

const (
	recentOutcomes = 8
	logTailLines   = 6
)

// EventStream hands orchestrator events to the watch view. The producer
// calls Close once Run returns; the viewer calls Detach when it exits early
// so a blocked Observe never stalls the run.
type EventStream struct {
	events     chan orchestrator.Event
	done       chan struct{}
	closeOnce  sync.Once
	detachOnce sync.Once
}

// NewEventStream returns a stream buffering up to size events.
func NewEventStream(size int) *EventStream {
	if size < 1 {
		size = 64
	}
	return &EventStream{
		events: make(chan orchestrator.Event, size),
		done:   make(chan struct{}),
	}
}

// Observe implements orchestrator.Observer.
func (s *EventStream) Observe(e orchestrator.Event) {
	select {
	case s.events <- e:
	case <-s.done:
	}
}

// Close ends the stream. No Observe call may follow.
func (s *EventStream) Close() {
	s.closeOnce.Do(func() { close(s.events) })
}

// Detach drops every future event.
func (s *EventStream) Detach() {
	s.detachOnce.Do(func() { close(s.done) })
}

type eventMsg orchestrator.Event

type streamClosedMsg struct{}

// WatchOption customizes a Watch model.
type WatchOption func(*Watch)

// WithLogbook shows the tail of book under the live view.
func WithLogbook(book *logbook.Logbook) WatchOption {
	return func(w *Watch) { w.book = book }
}

// WithStop is called when the user asks to stop. The run finishes its
// current round before exiting.
func WithStop(stop func()) WatchOption {
	return func(w *Watch) { w.stop = stop }
}

// Watch is the bubbletea model for `weekflow watch`.
type Watch struct {
	stream    *EventStream
	book      *logbook.Logbook
	stop      func()
	spinner   spinner.Model
	maxRounds int

	round     int
	inFlight  map[string]tracker.ReadyTask
	recent    []string
	completed int
	failed    int
	report    *orchestrator.Report
	stopping  bool
	closed    bool
	width     int
}

// NewWatch builds the model reading from stream.
func NewWatch(stream *EventStream, maxRounds int, opts ...WatchOption) *Watch {
	w := &Watch{
		stream:    stream,
		maxRounds: maxRounds,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(headerStyle.UnsetPadding())),
		inFlight:  map[string]tracker.ReadyTask{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Report returns the final report once the run has finished.
func (w *Watch) Report() (orchestrator.Report, bool) {
	if w.report == nil {
		return orchestrator.Report{}, false
	}
	return *w.report, true
}

// Init starts the spinner and the event pump.
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.next())
}

func (w *Watch) next() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-w.stream.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(e)
	}
}

// Update applies events and key presses.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		return w, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if w.report != nil || w.closed {
				return w, tea.Quit
			}
			if !w.stopping {
				w.stopping = true
				if w.stop != nil {
					w.stop()
				}
			}
			return w, nil
		}
		return w, nil

	case eventMsg:
		w.apply(orchestrator.Event(msg))
		if w.report != nil {
			return w, tea.Quit
		}
		return w, w.next()

	case streamClosedMsg:
		w.closed = true
		return w, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}
	return w, nil
}

func (w *Watch) apply(e orchestrator.Event) {
	switch e.Kind {
	case orchestrator.EventRoundStarted:
		w.round = e.Round
	case orchestrator.EventTaskStarted:
		w.inFlight[e.Task.String()] = e.Task
	case orchestrator.EventTaskFinished:
		delete(w.inFlight, e.Task.String())
		if e.Outcome == nil {
			return
		}
		line := fmt.Sprintf("✓ %s → %s", e.Task, e.Outcome.OutputFile)
		switch e.Outcome.Status {
		case tracker.StatusCompleted:
			w.completed++
		case tracker.StatusFailed:
			w.failed++
			line = fmt.Sprintf("✗ %s: %v", e.Task, e.Outcome.Err)
		default:
			line = fmt.Sprintf("· %s not claimed: %v", e.Task, e.Outcome.Err)
		}
		w.recent = append(w.recent, line)
		if len(w.recent) > recentOutcomes {
			w.recent = w.recent[len(w.recent)-recentOutcomes:]
		}
	case orchestrator.EventRunFinished:
		w.report = e.Report
		w.inFlight = map[string]tracker.ReadyTask{}
	}
}

// View renders the live board.
func (w *Watch) View() string {
	sections := []string{titleStyle.Render("⬡ WEEKFLOW")}

	status := fmt.Sprintf("%s Round %d/%d · %d in flight · %d completed · %d failed",
		w.spinner.View(), w.round, w.maxRounds, len(w.inFlight), w.completed, w.failed)
	if w.report != nil {
		status = fmt.Sprintf("Finished after %d round(s) · stop: %s · %d completed · %d failed",
			len(w.report.Rounds), w.report.Stop, w.report.Completed, w.report.Failed)
	}
	sections = append(sections, status)

	if len(w.inFlight) > 0 {
		keys := make([]string, 0, len(w.inFlight))
		for k := range w.inFlight {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var lines []string
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%-10s %s", w.inFlight[k].Role, k))
		}
		sections = append(sections, boxStyle.Render(strings.Join(lines, "\n")))
	}
	if len(w.recent) > 0 {
		sections = append(sections, strings.Join(w.recent, "\n"))
	}
	if w.book != nil {
		lines, total := w.book.Tail(logTailLines)
		if panel := RenderLogPanel(filepath.Base(w.book.Path()), lines, total); panel != "" {
			sections = append(sections, panel)
		}
	}

	hint := "q → stop after this round"
	switch {
	case w.report != nil || w.closed:
		hint = "q → exit"
	case w.stopping:
		hint = "stopping after the current round..."
	}
	sections = append(sections, mutedStyle.Render(hint))

	view := strings.Join(sections, "\n")
	if w.width > 0 {
		view = lipgloss.NewStyle().MaxWidth(w.width).Render(view)
	}
	return view
}
