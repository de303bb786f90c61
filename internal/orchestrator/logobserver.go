package orchestrator

import (
	"github.com/kingrea/weekflow/internal/logbook"
)

// LogObserver writes run events to a logbook.
type LogObserver struct {
	book *logbook.Logbook
}

// NewLogObserver returns an observer appending to book. A nil book drops
// every event.
func NewLogObserver(book *logbook.Logbook) *LogObserver {
	return &LogObserver{book: book}
}

// Observe implements Observer.
func (l *LogObserver) Observe(e Event) {
	switch e.Kind {
	case EventRoundStarted:
		l.book.Append(logbook.LevelInfo, "round started", logbook.Fields{
			"run":   e.RunID,
			"round": e.Round,
			"tasks": len(e.Batch),
		})
	case EventTaskFinished:
		if e.Outcome == nil {
			return
		}
		fields := logbook.Fields{
			"run":    e.RunID,
			"round":  e.Round,
			"task":   e.Task.String(),
			"role":   e.Task.Role,
			"status": string(e.Outcome.Status),
		}
		if e.Outcome.Err != nil {
			fields["error"] = e.Outcome.Err.Error()
			l.book.Append(logbook.LevelWarn, "task failed", fields)
			return
		}
		fields["output"] = e.Outcome.OutputFile
		l.book.Append(logbook.LevelInfo, "task finished", fields)
	case EventRoundFinished:
		if e.Summary == nil {
			return
		}
		l.book.Append(logbook.LevelInfo, "round finished", logbook.Fields{
			"run":       e.RunID,
			"round":     e.Round,
			"completed": e.Summary.Completed,
			"failed":    e.Summary.Failed,
			"unclaimed": e.Summary.Unclaimed,
		})
	case EventRunFinished:
		if e.Report == nil {
			return
		}
		level := logbook.LevelInfo
		if e.Report.Failed > 0 {
			level = logbook.LevelWarn
		}
		l.book.Append(level, "run finished", logbook.Fields{
			"run":       e.RunID,
			"rounds":    len(e.Report.Rounds),
			"completed": e.Report.Completed,
			"failed":    e.Report.Failed,
			"stop":      string(e.Report.Stop),
		})
	}
}
