// Package cmd provides CLI commands for the reel binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/cli/config"
	"github.com/pithecene-io/reel/ledger"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}

	// ConfigFlag points at a reel.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to reel.yaml (flags override its values)",
		EnvVars: []string{"REEL_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// LedgerFlags returns the flags that select a job ledger.
func LedgerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "ledger-backend",
			Usage: "Ledger backend: fs or s3",
		},
		&cli.StringFlag{
			Name:  "ledger-path",
			Usage: "Ledger root directory (fs) or bucket/prefix (s3)",
		},
		&cli.StringFlag{
			Name:  "ledger-dataset",
			Usage: "Ledger dataset name",
		},
		&cli.StringFlag{
			Name:  "ledger-s3-region",
			Usage: "AWS region for the s3 backend",
		},
		&cli.StringFlag{
			Name:  "ledger-s3-endpoint",
			Usage: "Custom endpoint for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "ledger-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// applyLedgerFlags overlays explicitly set ledger flags onto cfg.
func applyLedgerFlags(c *cli.Context, cfg *config.LedgerConfig) {
	overrideString(c, "ledger-backend", &cfg.Backend)
	overrideString(c, "ledger-path", &cfg.Path)
	overrideString(c, "ledger-dataset", &cfg.Dataset)
	overrideString(c, "ledger-s3-region", &cfg.Region)
	overrideString(c, "ledger-s3-endpoint", &cfg.Endpoint)
	if c.IsSet("ledger-s3-path-style") {
		cfg.S3PathStyle = c.Bool("ledger-s3-path-style")
	}
	if cfg.Backend == "" && cfg.Path != "" {
		cfg.Backend = "fs"
	}
	if cfg.Dataset == "" {
		cfg.Dataset = ledger.DefaultDataset
	}
}

func overrideString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func overrideInt64(c *cli.Context, name string, dst *int64) {
	if c.IsSet(name) {
		*dst = c.Int64(name)
	}
}

func overrideDuration(c *cli.Context, name string, dst *config.Duration) {
	if c.IsSet(name) {
		dst.Duration = c.Duration(name)
	}
}
