package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/cli/render"
	"github.com/pithecene-io/reel/cli/tui"
	"github.com/pithecene-io/reel/ledger"
)

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated, derived facts from the job ledger.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated job statistics from the ledger (jobs, errors)",
		Subcommands: []*cli.Command{
			statsJobsCommand(),
			statsErrorsCommand(),
		},
	}
}

// filterFlags narrow the records that are summarized.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "day",
			Usage: "Only include sessions started on this day (YYYY-MM-DD, UTC)",
		},
		&cli.StringFlag{
			Name:  "operation",
			Usage: "Only include sessions for this operation",
		},
		&cli.StringFlag{
			Name:  "outcome",
			Usage: "Only include sessions with this outcome: success or failure",
		},
	}
}

func filterFromFlags(c *cli.Context) ledger.Filter {
	return ledger.Filter{
		Day:       c.String("day"),
		Operation: c.String("operation"),
		Outcome:   c.String("outcome"),
	}
}

func statsJobsCommand() *cli.Command {
	return &cli.Command{
		Name:   "jobs",
		Usage:  "Show job totals, operations, transfer volume and durations",
		Flags:  append(ledgerReadFlags(), filterFlags()...),
		Action: statsJobsAction,
	}
}

func statsJobsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	stats, err := summarize(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsJobs, &stats)
	}
	return r.Render(stats)
}

// ErrorStats is the errors view of the ledger summary.
type ErrorStats struct {
	Total       int64            `json:"total" yaml:"total"`
	Failed      int64            `json:"failed" yaml:"failed"`
	ByErrorCode map[int]int64    `json:"by_error_code" yaml:"by_error_code"`
	ByErrorKind map[string]int64 `json:"by_error_kind" yaml:"by_error_kind"`
}

func statsErrorsCommand() *cli.Command {
	return &cli.Command{
		Name:   "errors",
		Usage:  "Show failed sessions by error code and kind",
		Flags:  append(ledgerReadFlags(), filterFlags()...),
		Action: statsErrorsAction,
	}
}

func statsErrorsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	stats, err := summarize(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsErrors, &stats)
	}
	return r.Render(ErrorStats{
		Total:       stats.Total,
		Failed:      stats.Failed,
		ByErrorCode: stats.ByErrorCode,
		ByErrorKind: stats.ByErrorKind,
	})
}

func summarize(c *cli.Context) (ledger.Stats, error) {
	if err := validateOutcome(c.String("outcome")); err != nil {
		return ledger.Stats{}, err
	}
	records, err := loadRecords(c)
	if err != nil {
		return ledger.Stats{}, err
	}
	return ledger.Summarize(records, filterFromFlags(c)), nil
}

func validateOutcome(outcome string) error {
	switch outcome {
	case "", ledger.OutcomeSuccess, ledger.OutcomeFailure:
		return nil
	default:
		return cli.Exit("--outcome must be success or failure, got "+outcome, 1)
	}
}
