package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/client"
	"github.com/pithecene-io/reel/server"
	"github.com/pithecene-io/reel/types"
)

// Exit codes for send.
const (
	exitSuccess         = 0
	exitRemoteError     = 1
	exitTransportFailed = 2
)

// SendCommand returns the send command.
// Send uploads one file, waits for the transformed output and stores it.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Upload a file to a reel server and download the transformed output",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Server address (host:port)",
				Value:   server.DefaultAddress,
				EnvVars: []string{"REEL_ADDR"},
			},
			&cli.StringFlag{
				Name:     "operation",
				Aliases:  []string{"op"},
				Usage:    "Operation: " + operationList(),
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "option",
				Usage: "Operation option as key=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "media-type",
				Usage: "Media type tag (defaults to the file extension)",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Directory the output is stored in",
				Value: ".",
			},
			&cli.DurationFlag{
				Name:  "dial-timeout",
				Usage: "Connection timeout",
				Value: client.DefaultDialTimeout,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall deadline for the job (0 = none)",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Upload chunk size in bytes",
				Value: client.DefaultChunkSize,
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
		},
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("file required", exitRemoteError)
	}

	options, err := parseOptions(c.StringSlice("option"))
	if err != nil {
		return cli.Exit(err.Error(), exitRemoteError)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cl := client.New(c.String("addr"))
	cl.DialTimeout = c.Duration("dial-timeout")
	cl.ChunkSize = c.Int("chunk-size")

	out, err := cl.SendFile(ctx, client.FileJob{
		Path:      c.Args().First(),
		Operation: types.Operation(c.String("operation")),
		Options:   options,
		MediaType: c.String("media-type"),
	}, c.String("out-dir"))
	if err != nil {
		return sendExit(err)
	}

	if !c.Bool("quiet") {
		fmt.Fprintln(c.App.Writer, out)
	}
	return nil
}

// sendExit maps a send failure to its exit code. A server envelope is
// printed with its solution.
func sendExit(err error) error {
	var remote *client.RemoteError
	if errors.As(err, &remote) {
		env := remote.Envelope
		msg := fmt.Sprintf("error %d: %s", env.Code, env.Description)
		if env.Solution != "" {
			msg += "\nsolution: " + env.Solution
		}
		return cli.Exit(msg, exitRemoteError)
	}
	return cli.Exit(fmt.Sprintf("transfer failed: %v", err), exitTransportFailed)
}

// parseOptions turns repeated key=value flags into an options map.
func parseOptions(pairs []string) (map[string]string, error) {
	options := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q (want key=value)", pair)
		}
		if _, dup := options[key]; dup {
			return nil, fmt.Errorf("option %q given more than once", key)
		}
		options[key] = value
	}
	return options, nil
}

func operationList() string {
	ops := types.Operations()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}
