package landbot

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/landbot/landbot/internal/ci"
	"github.com/landbot/landbot/internal/dashboard"
	"github.com/landbot/landbot/internal/reconcile"
	"github.com/landbot/landbot/internal/remote"
)

// runTUI runs the interactive `--tui` dashboard in place of the headless
// loop, reconciling on its own timer (see dashboard.Model).
func runTUI(client remote.Client, aggregator *ci.Aggregator, opts reconcile.Options) error {
	model := dashboard.NewModel(client, aggregator, opts)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
