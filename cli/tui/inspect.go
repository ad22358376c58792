package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/reel/ledger"
)

const timeLayout = "2006-01-02 15:04:05"

// InspectModel shows one ledger record in a scrollable viewport.
type InspectModel struct {
	rec      *ledger.Record
	vp       viewport.Model
	ready    bool
	quitting bool
}

// NewInspectModel returns a model for rec. The viewport is sized on the
// first tea.WindowSizeMsg.
func NewInspectModel(rec *ledger.Record) InspectModel {
	return InspectModel{rec: rec}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-2, 1)
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.vp.SetContent(recordCard(m.rec))
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	body := recordCard(m.rec)
	if m.ready {
		body = m.vp.View()
	}
	return body + "\n" + HelpStyle.Render("↑/↓ scroll  q quit")
}

// recordCard lays rec out as labeled lines inside a box. Failure fields are
// shown only for failed sessions.
func recordCard(rec *ledger.Record) string {
	if rec == nil {
		return ErrorStyle.Render("no record")
	}

	var lines []string
	field := func(label, value string, style lipgloss.Style) {
		if value == "" {
			return
		}
		lines = append(lines, LabelStyle.Render(label)+" "+style.Render(value))
	}

	field("outcome", rec.Outcome, OutcomeStyle(rec.Outcome))
	field("remote", rec.Remote, ValueStyle)
	field("file", rec.Filename, ValueStyle)
	field("operation", rec.Operation, ValueStyle)
	field("media type", rec.MediaType, ValueStyle)
	field("payload", FormatBytes(rec.PayloadBytes), ValueStyle)
	field("blake3", rec.UploadDigest, ValueStyle)
	if rec.OutputName != "" {
		field("output", fmt.Sprintf("%s (%s)", rec.OutputName, FormatBytes(rec.OutputBytes)), ValueStyle)
	}
	field("started", rec.StartedAt.Format(timeLayout), ValueStyle)
	field("duration", fmt.Sprintf("%d ms", rec.DurationMS), ValueStyle)
	if rec.Failed() {
		field("error", fmt.Sprintf("%d %s", rec.ErrorCode, rec.ErrorKind), CodeStyle(rec.ErrorCode))
		field("message", rec.ErrorMessage, ErrorStyle)
	}

	title := TitleStyle.Render("Session " + rec.SessionID)
	return BoxStyle.Render(title + "\n" + strings.Join(lines, "\n"))
}
