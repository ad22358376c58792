package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/reel/ledger"
)

type keyMap struct {
	Quit key.Binding
	Next key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Next: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
}

// StatsModel shows ledger totals with a breakdown table. Tab toggles between
// the per-operation and per-error views.
type StatsModel struct {
	view     string
	stats    *ledger.Stats
	table    table.Model
	quitting bool
}

// NewStatsModel returns a model opened on view.
func NewStatsModel(view string, stats *ledger.Stats) StatsModel {
	m := StatsModel{view: view, stats: stats}
	m.table = m.breakdown()
	return m
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			if m.view == ViewStatsJobs {
				m.view = ViewStatsErrors
			} else {
				m.view = ViewStatsJobs
			}
			m.table = m.breakdown()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	if m.stats == nil {
		return ErrorStyle.Render("no stats")
	}

	var b strings.Builder
	if m.view == ViewStatsErrors {
		b.WriteString(TitleStyle.Render("Error Statistics"))
		b.WriteString("\n")
		b.WriteString(m.errorTiles())
	} else {
		b.WriteString(TitleStyle.Render("Job Statistics"))
		b.WriteString("\n")
		b.WriteString(m.jobTiles())
	}
	b.WriteString("\n\n")
	if len(m.table.Rows()) > 0 {
		b.WriteString(m.table.View())
	} else if m.view == ViewStatsErrors {
		b.WriteString(SuccessStyle.Render("No failed sessions"))
	}
	if s := m.stats; s.FirstStartedAt != nil && s.LastStartedAt != nil {
		fmt.Fprintf(&b, "\n%s %s - %s", LabelStyle.Render("window"),
			ValueStyle.Render(s.FirstStartedAt.Format(timeLayout)),
			ValueStyle.Render(s.LastStartedAt.Format(timeLayout)))
	}
	b.WriteString("\n" + HelpStyle.Render("tab switch view  ↑/↓ scroll  q quit"))
	return b.String()
}

func (m StatsModel) jobTiles() string {
	s := m.stats
	return lipgloss.JoinHorizontal(lipgloss.Top,
		tile("total", strconv.FormatInt(s.Total, 10), highlightColor),
		tile("succeeded", strconv.FormatInt(s.Succeeded, 10), successColor),
		tile("failed", strconv.FormatInt(s.Failed, 10), errorColor),
		tile("received", FormatBytes(s.BytesReceived), highlightColor),
		tile("sent", FormatBytes(s.BytesSent), highlightColor),
		tile("mean ms", strconv.FormatInt(s.MeanDurationMS, 10), warningColor),
	)
}

func (m StatsModel) errorTiles() string {
	codes := make([]int, 0, len(m.stats.ByErrorCode))
	for code := range m.stats.ByErrorCode {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	tiles := []string{tile("failed", strconv.FormatInt(m.stats.Failed, 10), errorColor)}
	for _, code := range codes {
		color := warningColor
		if code >= 500 {
			color = errorColor
		}
		tiles = append(tiles, tile(fmt.Sprintf("code %d", code), strconv.FormatInt(m.stats.ByErrorCode[code], 10), color))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tiles...)
}

// breakdown builds the table for the current view: sessions per operation,
// or failures per error kind.
func (m StatsModel) breakdown() table.Model {
	var (
		title string
		rows  []table.Row
	)
	if m.stats != nil {
		if m.view == ViewStatsErrors {
			title = "error kind"
			kinds := make([]string, 0, len(m.stats.ByErrorKind))
			for k := range m.stats.ByErrorKind {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				rows = append(rows, table.Row{k, strconv.FormatInt(m.stats.ByErrorKind[k], 10)})
			}
		} else {
			title = "operation"
			for _, op := range m.stats.SortedOperations() {
				rows = append(rows, table.Row{op, strconv.FormatInt(m.stats.ByOperation[op], 10)})
			}
		}
	}

	t := table.New(
		table.WithColumns([]table.Column{{Title: title, Width: 28}, {Title: "sessions", Width: 10}}),
		table.WithRows(rows),
		table.WithHeight(min(len(rows), 10)+1),
		table.WithFocused(true),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.Foreground(mutedColor).Bold(true)
	st.Selected = st.Selected.Foreground(primaryColor)
	t.SetStyles(st)
	return t
}

func tile(label, value string, color lipgloss.Color) string {
	v := StatValueStyle.Foreground(color).Render(value)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, v, StatLabelStyle.Render(label)))
}
