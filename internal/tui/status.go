// Package tui renders tracker state for the terminal: static tables for the
// one-shot commands and a bubbletea model for watching a run live.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kingrea/weekflow/internal/orchestrator"
	"github.com/kingrea/weekflow/internal/tracker"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).Padding(0, 1)
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Padding(0, 1)
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Padding(0, 1)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

const progressCells = 20

// RenderStatus draws one row per group with per-type completion counts.
// taskTypes fixes the column order.
func RenderStatus(summaries []tracker.GroupSummary, taskTypes []string) string {
	if len(summaries) == 0 {
		return mutedStyle.Render("No groups tracked yet. Run `weekflow sync` first.")
	}
	headers := append([]string{"Group", "Items"}, taskTypes...)
	headers = append(headers, "Failed", "Done")

	var (
		rows    [][]string
		broken  = map[int]bool{}
		overall tracker.Progress
	)
	for i, s := range summaries {
		if s.Err != nil {
			broken[i] = true
			row := []string{s.Group, "-"}
			for range taskTypes {
				row = append(row, "-")
			}
			rows = append(rows, append(row, "-", "error"))
			continue
		}
		items := fmt.Sprintf("%d", s.Items)
		if s.Removed > 0 {
			items = fmt.Sprintf("%d (-%d)", s.Items, s.Removed)
		}
		row := []string{s.Group, items}
		for _, name := range taskTypes {
			p := s.ByType[name]
			row = append(row, fmt.Sprintf("%d/%d", p.Completed, p.Total))
		}
		row = append(row, fmt.Sprintf("%d", s.Overall.Failed), fmt.Sprintf("%.1f%%", s.Overall.CompletionPercentage()))
		rows = append(rows, row)
		overall = addProgress(overall, s.Overall)
	}

	failedCol := len(headers) - 2
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case broken[row]:
				return failedStyle
			case col == failedCol && cell(rows, row, col) != "0":
				return failedStyle
			case col == len(headers)-1 && cell(rows, row, col) == "100.0%":
				return doneStyle
			}
			return cellStyle
		})

	footer := fmt.Sprintf("%s %.1f%% · %d/%d tasks complete · %d failed",
		progressBar(overall.CompletionPercentage()),
		overall.CompletionPercentage(),
		overall.Completed, overall.Total, overall.Failed)
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("⬡ WEEKFLOW STATUS"), t.Render(), mutedStyle.Render(footer))
}

// RenderReady lists ready tasks. total is the count before any limit.
func RenderReady(tasks []tracker.ReadyTask, total int) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("No ready tasks.")
	}
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		item := task.Item
		if item == "" {
			item = "(group)"
		}
		rows = append(rows, []string{task.Group, item, task.TaskType, task.Role})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Group", "Item", "Task", "Role").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	footer := fmt.Sprintf("showing %d of %d ready task(s)", len(tasks), total)
	return lipgloss.JoinVertical(lipgloss.Left, t.Render(), mutedStyle.Render(footer))
}

// RenderReport summarizes a finished run, one row per round.
func RenderReport(r orchestrator.Report) string {
	rows := make([][]string, 0, len(r.Rounds))
	for _, round := range r.Rounds {
		rows = append(rows, []string{
			fmt.Sprintf("%d", round.Number),
			fmt.Sprintf("%d", round.Dispatched),
			fmt.Sprintf("%d", round.Completed),
			fmt.Sprintf("%d", round.Failed),
			formatRoles(round.ByRole),
			round.FinishedAt.Sub(round.StartedAt).Round(time.Millisecond).String(),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Round", "Tasks", "Done", "Failed", "Roles", "Took").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 3 && cell(rows, row, col) != "0":
				return failedStyle
			}
			return cellStyle
		})
	summary := fmt.Sprintf("run %s · stop: %s · %d completed · %d failed · %d unclaimed · est. %d tokens",
		r.RunID, r.Stop, r.Completed, r.Failed, r.Unclaimed, r.EstimatedTokens)
	return lipgloss.JoinVertical(lipgloss.Left, t.Render(), mutedStyle.Render(summary))
}

// RenderLogPanel boxes the last lines of the run log.
func RenderLogPanel(name string, lines []string, total int) string {
	if len(lines) == 0 {
		return ""
	}
	head := headerStyle.UnsetPadding().Render(fmt.Sprintf("LOG · %s (%d lines)", name, total))
	body := mutedStyle.Render(strings.Join(lines, "\n"))
	return boxStyle.Render(head + "\n" + body)
}

func cell(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) || col < 0 || col >= len(rows[row]) {
		return ""
	}
	return rows[row][col]
}

func progressBar(pct float64) string {
	filled := int(pct / 100 * float64(progressCells))
	if filled > progressCells {
		filled = progressCells
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", progressCells-filled) + "]"
}

func formatRoles(byRole map[string]int) string {
	if len(byRole) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(byRole))
	for role, n := range byRole {
		parts = append(parts, fmt.Sprintf("%s:%d", role, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func addProgress(a, b tracker.Progress) tracker.Progress {
	return tracker.Progress{
		Total:      a.Total + b.Total,
		Pending:    a.Pending + b.Pending,
		InProgress: a.InProgress + b.InProgress,
		Completed:  a.Completed + b.Completed,
		Failed:     a.Failed + b.Failed,
		Skipped:    a.Skipped + b.Skipped,
	}
}
