package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// DefaultFFmpegPath is the tool looked up on PATH when none is configured.
const DefaultFFmpegPath = "ffmpeg"

// maxStderr bounds the diagnostic output kept from one run.
const maxStderr = 64 * 1024

// FFmpeg runs plans through the ffmpeg command-line tool.
type FFmpeg struct {
	// Path is the ffmpeg binary.
	Path string
	// Env, if set, replaces the inherited environment.
	Env []string
}

// NewFFmpeg returns a runner for the binary at path.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = DefaultFFmpegPath
	}
	return &FFmpeg{Path: path}
}

// Args builds the full argument list for req.
func (f *FFmpeg) Args(req Request) []string {
	args := []string{"-y", "-nostdin", "-hide_banner", "-loglevel", "error", "-i", req.InputPath}
	args = append(args, req.Plan.Args()...)
	return append(args, req.OutputPath)
}

// Run invokes ffmpeg and waits for it to exit.
// Stderr is captured for the failure message.
func (f *FFmpeg) Run(ctx context.Context, req Request) *Result {
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return Failure(FailureStart, -1, fmt.Sprintf("failed to create output directory: %v", err))
	}

	cmd := exec.CommandContext(ctx, f.Path, f.Args(req)...)
	cmd.Env = f.Env
	stderr := &tailBuffer{limit: maxStderr}
	cmd.Stderr = stderr

	err := cmd.Run()

	exitCode, runErr := exitCodeOf(err)
	if ctx.Err() != nil && (runErr != nil || exitCode != ExitCodeSuccess) {
		removeOutput(req.OutputPath)
		return Failure(FailureCanceled, -1, fmt.Sprintf("transform canceled: %v", ctx.Err()))
	}
	if runErr != nil {
		removeOutput(req.OutputPath)
		return Failure(FailureStart, -1, fmt.Sprintf("failed to run %s: %v", f.Path, runErr))
	}

	return DetermineResult(exitCode, req.OutputPath, stderr.Bytes())
}

// exitCodeOf extracts the process exit code. A non-nil error return means
// the process never ran to an exit status.
func exitCodeOf(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return -1, nil
			}
			return status.ExitStatus(), nil
		}
		return -1, nil
	}
	return -1, err
}

// tailBuffer keeps the last limit bytes written. ffmpeg prints the fatal
// error last, after any amount of warnings.
type tailBuffer struct {
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= b.limit {
		b.buf = append(b.buf[:0], p[n-b.limit:]...)
		return n, nil
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) Bytes() []byte {
	return b.buf
}
