package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/cli/config"
	"github.com/pithecene-io/reel/ledger"
)

var errNoLedger = errors.New("no ledger configured (set --ledger-path or ledger.path in reel.yaml)")

// openLedger builds the ledger selected by cfg.
// Returns errNoLedger when no backend is configured.
func openLedger(ctx context.Context, cfg config.LedgerConfig) (*ledger.Ledger, error) {
	switch cfg.Backend {
	case "":
		return nil, errNoLedger
	case "fs":
		return ledger.NewFS(cfg.Dataset, cfg.Path)
	case "s3":
		bucket, prefix := ledger.ParseS3Path(cfg.Path)
		return ledger.NewS3(ctx, cfg.Dataset, ledger.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s (must be fs or s3)", cfg.Backend)
	}
}

// readLedgerConfig merges the optional config file with the ledger flags.
func readLedgerConfig(c *cli.Context) (config.LedgerConfig, error) {
	var cfg config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.LedgerConfig{}, err
		}
		cfg = *loaded
	}
	applyLedgerFlags(c, &cfg.Ledger)
	if err := cfg.Validate(); err != nil {
		return config.LedgerConfig{}, err
	}
	return cfg.Ledger, nil
}

// loadRecords reads every record from the ledger selected by c's flags.
func loadRecords(c *cli.Context) ([]ledger.Record, error) {
	cfg, err := readLedgerConfig(c)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	l, err := openLedger(c.Context, cfg)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	defer l.Close()

	records, err := l.Records(c.Context)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to read ledger: %v", err), 1)
	}
	return records, nil
}

// ledgerReadFlags returns the flags shared by commands that read the ledger.
func ledgerReadFlags() []cli.Flag {
	flags := append(ReadOnlyFlags(), ConfigFlag)
	return append(flags, LedgerFlags()...)
}
