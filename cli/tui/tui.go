package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/reel/ledger"
)

// View types rendered by the TUI.
const (
	ViewStatsJobs   = "stats_jobs"
	ViewStatsErrors = "stats_errors"
	ViewInspectJob  = "inspect_job"
)

var supportedViews = []string{ViewStatsJobs, ViewStatsErrors, ViewInspectJob}

// Run opens an alt-screen program for viewType over data.
func Run(viewType string, data any) error {
	m, err := newModel(viewType, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// RenderStatic returns the first frame of viewType over data without
// starting a program. Used when output is not a terminal.
func RenderStatic(viewType string, data any) (string, error) {
	m, err := newModel(viewType, data)
	if err != nil {
		return "", err
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View()), nil
}

// IsTUISupported reports whether viewType has a TUI rendering.
func IsTUISupported(viewType string) bool {
	return slices.Contains(supportedViews, viewType)
}

// SupportedTUIViews lists the view types Run accepts.
func SupportedTUIViews() []string {
	return slices.Clone(supportedViews)
}

func newModel(viewType string, data any) (tea.Model, error) {
	if !IsTUISupported(viewType) {
		return nil, fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	switch d := data.(type) {
	case *ledger.Stats:
		if viewType == ViewInspectJob {
			break
		}
		return NewStatsModel(viewType, d), nil
	case *ledger.Record:
		if viewType != ViewInspectJob {
			break
		}
		return NewInspectModel(d), nil
	}
	return nil, fmt.Errorf("%s: unexpected data %T", viewType, data)
}
