package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/landbot/landbot/internal/ci"
	"github.com/landbot/landbot/internal/reconcile"
	"github.com/landbot/landbot/internal/remote"
)

// tickInterval is the delay between the TUI's own reconciliation passes;
// in --tui mode these passes replace the headless loop and its
// --poll-interval.
const tickInterval = 15 * time.Second

type tickMsg time.Time

type resultMsg struct {
	result *reconcile.Result
	err    error
}

// Model is the bubbletea model for `--tui`: a live table of every open
// pull request's number, state, approval count and title, in rank order,
// refreshed on a timer. The
// table itself is a bubbles/table.Model so arrow-key navigation and
// scrolling come for free instead of being hand-rolled.
type Model struct {
	client     remote.Client
	aggregator *ci.Aggregator
	opts       reconcile.Options

	table table.Model

	width, height int
	lastUpdate    time.Time
	result        *reconcile.Result
	err           error
}

var tableColumns = []table.Column{
	{Title: "Num", Width: 6},
	{Title: "State", Width: 10},
	{Title: "Approved", Width: 8},
	{Title: "Title", Width: 40},
}

// NewModel builds a TUI model that reconciles against client on each tick.
func NewModel(client remote.Client, aggregator *ci.Aggregator, opts reconcile.Options) Model {
	t := table.New(
		table.WithColumns(tableColumns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(styles)

	return Model{client: client, aggregator: aggregator, opts: opts, table: t}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.reconcileCmd, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) reconcileCmd() tea.Msg {
	result, err := reconcile.Run(context.Background(), m.client, m.aggregator, m.opts)
	return resultMsg{result: result, err: err}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetWidth(m.width - 2)
		m.table.SetHeight(m.height - 6)

	case resultMsg:
		m.lastUpdate = time.Now()
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.result = msg.result
			m.err = nil
			m.table.SetRows(rowsFromResult(msg.result, m.width))
		}

	case tickMsg:
		return m, tea.Batch(m.reconcileCmd, tickCmd())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func rowsFromResult(result *reconcile.Result, width int) []table.Row {
	titleWidth := 40
	if width > 70 {
		titleWidth = width - 32
	}
	rows := make([]table.Row, 0, len(result.Records))
	for _, rec := range result.Records {
		rows = append(rows, table.Row{
			fmt.Sprintf("#%d", rec.Num),
			rec.State,
			fmt.Sprintf("%d", rec.Approvals),
			truncate(rec.Title, titleWidth),
		})
	}
	return rows
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, titleStyle.Render("landbot status"))

	if m.err != nil {
		sections = append(sections, errorStyle.Render("reconcile failed: "+m.err.Error()))
	}

	if m.result == nil {
		sections = append(sections, dimStyle.Render("loading..."))
	} else {
		sections = append(sections, m.table.View())
	}

	sections = append(sections, dimStyle.Render(fmt.Sprintf("last update %s · ↑/↓ to browse · press q to quit", m.lastUpdate.Format("15:04:05"))))
	return strings.Join(sections, "\n")
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
