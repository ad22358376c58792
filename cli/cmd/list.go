package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/cli/render"
	"github.com/pithecene-io/reel/ledger"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// ListCommand returns the list command with subcommands.
// List returns thin slices (not inspect-level detail).
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recorded sessions",
		Subcommands: []*cli.Command{
			listSessionsCommand(),
		},
	}
}

// SessionRow is the list view of one ledger record.
type SessionRow struct {
	SessionID  string    `json:"session_id" yaml:"session_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	Operation  string    `json:"operation" yaml:"operation"`
	Filename   string    `json:"filename" yaml:"filename"`
	Outcome    string    `json:"outcome" yaml:"outcome"`
	ErrorCode  int       `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	DurationMS int64     `json:"duration_ms" yaml:"duration_ms"`
}

func listSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List sessions, newest first",
		Flags: append(append(ledgerReadFlags(), filterFlags()...),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of sessions to return (0 = no limit)",
				Value: 0,
			},
		),
		Action: listSessionsAction,
	}
}

func listSessionsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}
	if err := validateOutcome(c.String("outcome")); err != nil {
		return err
	}

	records, err := loadRecords(c)
	if err != nil {
		return err
	}

	limit := c.Int("limit")
	rows := sessionRows(records, filterFromFlags(c), limit)

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(rows) > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(rows))
	}

	return r.Render(rows)
}

// sessionRows filters records, orders them newest first and applies limit.
func sessionRows(records []ledger.Record, f ledger.Filter, limit int) []SessionRow {
	rows := make([]SessionRow, 0, len(records))
	for _, rec := range records {
		if !f.Match(rec) {
			continue
		}
		rows = append(rows, SessionRow{
			SessionID:  rec.SessionID,
			StartedAt:  rec.StartedAt,
			Operation:  rec.Operation,
			Filename:   rec.Filename,
			Outcome:    rec.Outcome,
			ErrorCode:  rec.ErrorCode,
			DurationMS: rec.DurationMS,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StartedAt.After(rows[j].StartedAt)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
