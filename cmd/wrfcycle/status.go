package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	usecase "github.com/tigerroll/wrfcycle/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// renderTable lays rows out in columns sized to their widest cell.
func renderTable(title string, header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for _, r := range append([][]string{header}, rows...) {
		for i, cell := range r {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cellStyle.Width(widths[i] + 2).Render(style.Render(cell))
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}

	lines := []string{headerStyle.Render(title), line(header, headerStyle)}
	for _, r := range rows {
		lines = append(lines, line(r, lipgloss.NewStyle()))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderStatus(status []usecase.StepStatus) string {
	rows := make([][]string, 0, len(status))
	done := 0
	for _, st := range status {
		state := warnStyle.Render("pending")
		switch {
		case st.Complete:
			state = okStyle.Render("complete")
			done++
		case st.LastOutcome != "" && st.LastOutcome != model.OutcomeSuccess:
			state = failStyle.Render("failed")
		}
		rows = append(rows, []string{
			st.Step.ID,
			st.Step.StartTimestamp(),
			st.Step.EndTimestamp(),
			st.Preprocess.String(),
			fmt.Sprintf("%d/%d", st.Restarts.Instability, st.Restarts.Transient),
			fmt.Sprint(st.Attempts),
			orDash(st.LastOutcome.String()),
			state,
		})
	}
	title := fmt.Sprintf("%d of %d steps complete", done, len(status))
	return renderTable(title, []string{"STEP", "START", "END", "PREPROCESS", "R/T", "ATTEMPTS", "LAST", "STATE"}, rows)
}

func renderAttempts(records []*model.AttemptRecord) string {
	rows := make([][]string, 0, len(records))
	step := ""
	for _, r := range records {
		step = r.StepID
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			fmt.Sprint(r.Attempt),
			fmt.Sprint(r.Transient),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
			fmt.Sprintf("%g", r.TimeStep),
			fmt.Sprint(r.SubStep),
			fmt.Sprintf("%g", r.Damping),
			orDash(r.Outcome.String()),
			r.Message,
		})
	}
	title := fmt.Sprintf("%d attempts", len(records))
	if step != "" {
		title = fmt.Sprintf("step %s: %s", step, title)
	}
	return renderTable(title, []string{"R", "T", "STARTED", "TOOK", "TIME_STEP", "SUB_STEP", "DAMPING", "OUTCOME", "MESSAGE"}, rows)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
