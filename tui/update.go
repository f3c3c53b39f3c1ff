package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ideaforge/ideaforge/internal/pipeline"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.ctrl != nil {
				m.ctrl.Cancel()
			}
			return m, tea.Quit

		case "tab":
			m.activeTab = (m.activeTab + 1) % 2
			m.cursor = 0
			m.historyScroll = 0
			if m.activeTab == 1 {
				m.refreshHistory()
			}

		case "h":
			m.activeTab = 1
			m.refreshHistory()

		case "p":
			m.activeTab = 0

		case "j", "down":
			if m.activeTab == 1 {
				if m.historyScroll < len(m.records)-1 {
					m.historyScroll++
				}
			} else if m.reviewing() && m.cursor < len(m.snap.Features)-1 {
				m.cursor++
			}

		case "k", "up":
			if m.activeTab == 1 {
				if m.historyScroll > 0 {
					m.historyScroll--
				}
			} else if m.reviewing() && m.cursor > 0 {
				m.cursor--
			}

		case " ":
			if m.reviewing() {
				m.selected[m.cursor] = !m.selected[m.cursor]
			}

		case "a":
			if m.reviewing() {
				for i := range m.snap.Features {
					m.selected[i] = true
				}
			}

		case "n":
			if m.reviewing() {
				m.selected = make(map[int]bool)
			}

		case "enter":
			if m.reviewing() && m.ctrl != nil {
				var indices []int
				for i, ref := range m.snap.Features {
					if m.selected[i] {
						indices = append(indices, ref.Index)
					}
				}
				m.ctrl.Resume(indices)
			}

		case "c":
			if m.ctrl != nil && m.activeTab == 0 {
				m.ctrl.Cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tickCmd()

	case SnapshotMsg:
		prevState := m.snap.State
		m.snap = msg.Snap
		if msg.Snap.State == pipeline.StatePausedForReview && prevState != pipeline.StatePausedForReview {
			// Everything starts selected; the gate is opt-out.
			m.selected = make(map[int]bool)
			for i := range msg.Snap.Features {
				m.selected[i] = true
			}
			m.cursor = 0
		}
		if msg.Snap.State.Terminal() {
			m.refreshHistory()
		}
		return m, waitForSnapshot(msg.sub)
	}

	return m, nil
}

func (m Model) reviewing() bool {
	return m.activeTab == 0 && m.snap.State == pipeline.StatePausedForReview
}
