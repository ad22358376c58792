package cmd

import (
	"bufio"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/cli/render"
	"github.com/pithecene-io/reel/protocol"
	"github.com/pithecene-io/reel/transform"
	"github.com/pithecene-io/reel/types"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are opt-in diagnostic tools. They never contact a server.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (plan, request)",
		Subcommands: []*cli.Command{
			debugPlanCommand(),
			debugRequestCommand(),
		},
	}
}

// PlanInfo describes what the server would run for a job.
type PlanInfo struct {
	Filename   string            `json:"filename" yaml:"filename"`
	Operation  string            `json:"operation" yaml:"operation"`
	Options    map[string]string `json:"options" yaml:"options"`
	OutputName string            `json:"output_name" yaml:"output_name"`
	Args       []string          `json:"ffmpeg_args" yaml:"ffmpeg_args"`
}

func debugPlanCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Show the output name and ffmpeg arguments for a job",
		ArgsUsage: "<filename>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:     "operation",
				Aliases:  []string{"op"},
				Usage:    "Operation name",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "option",
				Usage: "Operation option as key=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "ffmpeg",
				Usage: "ffmpeg binary shown in the command line",
				Value: transform.DefaultFFmpegPath,
			},
		),
		Action: debugPlanAction,
	}
}

func debugPlanAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("filename required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for debug commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	options, err := parseOptions(c.StringSlice("option"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	info, err := describePlan(c.String("ffmpeg"), &types.JobDescriptor{
		Filename:  c.Args().First(),
		Operation: types.Operation(c.String("operation")),
		Options:   options,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return r.Render(info)
}

func describePlan(ffmpegPath string, job *types.JobDescriptor) (*PlanInfo, error) {
	plan, err := transform.NewPlan(job)
	if err != nil {
		return nil, err
	}
	ff := transform.NewFFmpeg(ffmpegPath)
	output := plan.OutputName(job.Filename)
	args := ff.Args(transform.Request{InputPath: job.Filename, OutputPath: output, Plan: plan})
	return &PlanInfo{
		Filename:   job.Filename,
		Operation:  string(job.Operation),
		Options:    job.Options,
		OutputName: output,
		Args:       append([]string{ff.Path}, args...),
	}, nil
}

// RequestInfo describes a captured request stream.
type RequestInfo struct {
	DescriptorLen int                  `json:"descriptor_len" yaml:"descriptor_len"`
	MediaTypeLen  int                  `json:"media_type_len" yaml:"media_type_len"`
	PayloadLen    int64                `json:"payload_len" yaml:"payload_len"`
	Descriptor    *types.JobDescriptor `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	MediaType     string               `json:"media_type" yaml:"media_type"`
	Error         string               `json:"error,omitempty" yaml:"error,omitempty"`
}

func debugRequestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Usage:     "Decode the header, descriptor and media type of a captured request",
		ArgsUsage: "<capture-file>",
		Flags:     ReadOnlyFlags(),
		Action:    debugRequestAction,
	}
}

func debugRequestAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("capture file required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open capture: %v", err), 1)
	}
	defer f.Close()

	return r.Render(decodeRequest(bufio.NewReader(f)))
}

// decodeRequest reads the request prefix from br. Decoding stops at the first
// error, which is reported in the result rather than returned.
func decodeRequest(br *bufio.Reader) *RequestInfo {
	info := &RequestInfo{}

	h, err := protocol.ReadHeader(br)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.DescriptorLen = h.DescriptorLen
	info.MediaTypeLen = h.MediaTypeLen
	info.PayloadLen = h.PayloadLen

	raw, err := protocol.ReadSection(br, h.DescriptorLen, "descriptor")
	if err != nil {
		info.Error = err.Error()
		return info
	}
	if info.Descriptor, err = protocol.DecodeDescriptor(raw); err != nil {
		info.Error = err.Error()
		return info
	}

	tag, err := protocol.ReadSection(br, h.MediaTypeLen, "media type")
	if err != nil {
		info.Error = err.Error()
		return info
	}
	if !utf8.Valid(tag) {
		info.Error = "media type is not valid UTF-8"
		return info
	}
	info.MediaType = string(tag)
	return info
}
