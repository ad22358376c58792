package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/cli/render"
	"github.com/pithecene-io/reel/cli/tui"
	"github.com/pithecene-io/reel/ledger"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns the full ledger record of one entity.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a recorded session",
		Subcommands: []*cli.Command{
			inspectSessionCommand(),
		},
	}
}

func inspectSessionCommand() *cli.Command {
	return &cli.Command{
		Name:      "session",
		Usage:     "Inspect a session by ID (a unique prefix is enough)",
		ArgsUsage: "<session-id>",
		Flags:     ledgerReadFlags(),
		Action:    inspectSessionAction,
	}
}

func inspectSessionAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("session-id required", 1)
	}
	id := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	records, err := loadRecords(c)
	if err != nil {
		return err
	}
	rec, err := findSession(records, id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectJob, rec)
	}
	return r.Render(rec)
}

// findSession returns the record whose session ID equals id, or the only
// record whose ID starts with it.
func findSession(records []ledger.Record, id string) (*ledger.Record, error) {
	var match *ledger.Record
	for i := range records {
		rec := &records[i]
		if rec.SessionID == id {
			return rec, nil
		}
		if strings.HasPrefix(rec.SessionID, id) {
			if match != nil {
				return nil, fmt.Errorf("session id %q is ambiguous", id)
			}
			match = rec
		}
	}
	if match == nil {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return match, nil
}
