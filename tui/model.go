package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ideaforge/ideaforge/internal/history"
	"github.com/ideaforge/ideaforge/internal/pipeline"
)

// HistoryReader is the subset of the history store the TUI needs.
type HistoryReader interface {
	Recent(n int) ([]pipeline.RunRecord, error)
	Summary() (history.Aggregate, error)
}

// Model is the TUI application model
type Model struct {
	ctrl *pipeline.Controller
	hist HistoryReader

	// Data
	snap    pipeline.Snapshot
	records []pipeline.RunRecord
	agg     history.Aggregate

	// Review gate state
	selected map[int]bool
	cursor   int

	// UI state
	width         int
	height        int
	activeTab     int
	historyScroll int
	quitting      bool

	started time.Time
}

// ModelConfig holds initial data for the TUI model
type ModelConfig struct {
	Controller *pipeline.Controller
	History    HistoryReader
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	m := Model{
		ctrl:     cfg.Controller,
		hist:     cfg.History,
		selected: make(map[int]bool),
		started:  time.Now(),
	}
	if cfg.Controller != nil {
		m.snap = cfg.Controller.Snapshot()
	}
	m.refreshHistory()
	return m
}

func (m *Model) refreshHistory() {
	if m.hist == nil {
		return
	}
	if recs, err := m.hist.Recent(50); err == nil {
		m.records = recs
	}
	if agg, err := m.hist.Summary(); err == nil {
		m.agg = agg
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if m.ctrl != nil {
		cmds = append(cmds, waitForSnapshot(m.ctrl.Subscribe()))
	}
	return tea.Batch(cmds...)
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// SnapshotMsg carries a controller state update.
type SnapshotMsg struct {
	Snap pipeline.Snapshot
	sub  <-chan pipeline.Snapshot
}

func waitForSnapshot(sub <-chan pipeline.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return nil
		}
		return SnapshotMsg{Snap: snap, sub: sub}
	}
}
