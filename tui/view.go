package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/ideaforge/ideaforge/internal/pipeline"
	"github.com/ideaforge/ideaforge/internal/protocol"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))
)

var stepLabels = map[protocol.Step]string{
	protocol.StepEnhanceIdea:     "Enhance idea",
	protocol.StepGeneratePRD:     "Generate PRD",
	protocol.StepCreateRepo:      "Create repository",
	protocol.StepExtractFeatures: "Extract features",
	protocol.StepImplement:       "Implement",
	protocol.StepPublish:         "Publish",
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" ideaforge │ %s │ %d%% ", stateLabel(m.snap.State), m.snap.Progress)
	if m.snap.Record.ProjectTitle != "" {
		header = fmt.Sprintf(" ideaforge │ %s │ %s │ %d%% ", m.snap.Record.ProjectTitle, stateLabel(m.snap.State), m.snap.Progress)
	}
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.activeTab {
	case 0:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderPipeline()))
		b.WriteString("\n")
		if m.snap.State == pipeline.StatePausedForReview {
			b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderReviewGate()))
			b.WriteString("\n")
		}
		if m.snap.State.Terminal() || m.snap.State == pipeline.StateConnectionLost {
			b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderOutcome()))
			b.WriteString("\n")
		}
	case 1:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderHistory()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"Pipeline", "History"}
	var parts []string
	for i, name := range tabs {
		if i == m.activeTab {
			parts = append(parts, tabActiveStyle.Render(name))
		} else {
			parts = append(parts, tabInactiveStyle.Render(name))
		}
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) renderPipeline() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Pipeline"))
	b.WriteString("\n\n")

	for _, step := range pipeline.Steps() {
		st := m.snap.Steps[step]
		var lamp, label string
		switch st.Status {
		case protocol.StatusCompleted:
			lamp = completedStyle.Render("●")
			label = stepLabels[step]
		case protocol.StatusInProgress:
			lamp = inProgressStyle.Render("●")
			label = inProgressStyle.Render(stepLabels[step])
		case protocol.StatusFailed:
			lamp = failedStyle.Render("●")
			label = failedStyle.Render(stepLabels[step])
		default:
			lamp = pendingStyle.Render("○")
			label = pendingStyle.Render(stepLabels[step])
		}
		b.WriteString(fmt.Sprintf("  %s %-20s", lamp, label))
		if st.Detail != "" {
			b.WriteString(dimmedStyle.Render(" " + st.Detail))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(m.renderProgressBar())
	return b.String()
}

func (m Model) renderProgressBar() string {
	width := m.width - 12
	if width < 10 {
		width = 10
	}
	filled := width * m.snap.Progress / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %3d%%", completedStyle.Render(bar), m.snap.Progress)
}

func (m Model) renderReviewGate() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Review features"))
	b.WriteString(dimmedStyle.Render("  select what gets implemented"))
	b.WriteString("\n\n")

	for i, ref := range m.snap.Features {
		check := "[ ]"
		if m.selected[i] {
			check = "[x]"
		}
		line := fmt.Sprintf("  %s %s", check, ref.Feature.Name)
		detail := fmt.Sprintf("  (%s · %s)", ref.EpicName, ref.Feature.Complexity)
		if i == m.cursor {
			b.WriteString(selectedRowStyle.Render("▸" + line[1:]))
		} else {
			b.WriteString(line)
		}
		b.WriteString(dimmedStyle.Render(detail))
		b.WriteString("\n")
	}

	count := 0
	for _, on := range m.selected {
		if on {
			count++
		}
	}
	b.WriteString(fmt.Sprintf("\n  %d of %d selected", count, len(m.snap.Features)))
	return b.String()
}

func (m Model) renderOutcome() string {
	var b strings.Builder
	rec := m.snap.Record

	switch m.snap.State {
	case pipeline.StateSuccess:
		b.WriteString(completedStyle.Render("✓ Pipeline completed"))
		if rec.Degraded {
			b.WriteString(inProgressStyle.Render("  (some steps simulated)"))
		}
		b.WriteString("\n\n")
		if rec.RepoURL != "" {
			b.WriteString("  Repository: " + rec.RepoURL + "\n")
		}
		b.WriteString(fmt.Sprintf("  %d epics, %d features, %.0fs\n", rec.EpicsCount, rec.FeaturesCount, rec.ElapsedSeconds))
	case pipeline.StateFailed:
		b.WriteString(failedStyle.Render("✗ Pipeline failed"))
		b.WriteString("\n\n")
		if rec.Error != "" {
			b.WriteString("  " + rec.Error + "\n")
		}
	case pipeline.StateCancelled:
		b.WriteString(pendingStyle.Render("Pipeline cancelled"))
		b.WriteString("\n")
	case pipeline.StateConnectionLost:
		b.WriteString(inProgressStyle.Render("Connection lost"))
		b.WriteString("\n\n")
		b.WriteString("  The run may still be executing on the backend.\n")
		b.WriteString(dimmedStyle.Render("  Run id: " + rec.ID))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderHistory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Run history"))
	b.WriteString("\n\n")

	if len(m.records) == 0 {
		b.WriteString(dimmedStyle.Render("  No runs yet."))
		b.WriteString("\n")
		return b.String()
	}

	maxVisible := m.height - 12
	if maxVisible < 5 {
		maxVisible = 5
	}
	start := m.historyScroll
	if start > len(m.records)-1 {
		start = len(m.records) - 1
	}
	end := start + maxVisible
	if end > len(m.records) {
		end = len(m.records)
	}

	for i := start; i < end; i++ {
		rec := m.records[i]
		var mark string
		switch rec.Status {
		case pipeline.RunSuccess:
			mark = completedStyle.Render("✓")
		case pipeline.RunFailed:
			mark = failedStyle.Render("✗")
		default:
			mark = pendingStyle.Render("–")
		}
		title := rec.ProjectTitle
		if title == "" {
			title = rec.ID
		}
		line := fmt.Sprintf("  %s %-32s %s", mark, truncate(title, 32), humanize.Time(rec.CreatedAt))
		if rec.Status == pipeline.RunSuccess {
			line += dimmedStyle.Render(fmt.Sprintf("  %d features, %.0fs", rec.FeaturesCount, rec.ElapsedSeconds))
		} else if rec.Error != "" {
			line += dimmedStyle.Render("  " + truncate(rec.Error, 40))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n  %d runs · %d successful · avg %.0fs · %d features built\n",
		m.agg.Total, m.agg.Successful, m.agg.AvgElapsedSeconds, m.agg.TotalFeatures))
	return b.String()
}

func (m Model) renderStatusBar() string {
	var bar string
	switch {
	case m.reviewing():
		bar = " [j/k]navigate [space]toggle [a]ll [n]one [enter]continue [c]ancel [q]uit "
	case m.activeTab == 1:
		bar = " [tab]switch [j/k]scroll [q]uit "
	case m.snap.State.Terminal():
		bar = " [tab]switch [h]istory [q]uit "
	default:
		bar = " [tab]switch [h]istory [c]ancel [q]uit "
	}
	return statusBarStyle.Width(m.width).Render(bar)
}

func stateLabel(s pipeline.State) string {
	switch s {
	case pipeline.StateIdle:
		return "idle"
	case pipeline.StateStarting:
		return "starting"
	case pipeline.StateStreaming:
		return "running"
	case pipeline.StatePausedForReview:
		return "review"
	case pipeline.StateResuming:
		return "resuming"
	case pipeline.StateFinishing:
		return "finishing"
	case pipeline.StateSuccess:
		return "done"
	case pipeline.StateFailed:
		return "failed"
	case pipeline.StateCancelled:
		return "cancelled"
	case pipeline.StateConnectionLost:
		return "connection lost"
	}
	return string(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
