package transform

import (
	"bytes"
	"fmt"
	"os"
)

// Exit codes with a fixed meaning.
const (
	ExitCodeSuccess  = 0
	ExitCodeSignaled = -1
)

// DetermineResult maps a finished run to a Result.
//
//   - exit 0 with a non-empty output file: success
//   - exit 0 with no output or an empty one: missing output
//   - signaled: failure, tool killed
//   - any other exit: failure carrying the last stderr line
//
// On failure any file at outputPath is removed.
func DetermineResult(exitCode int, outputPath string, stderr []byte) *Result {
	switch exitCode {
	case ExitCodeSuccess:
		info, err := os.Stat(outputPath)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			removeOutput(outputPath)
			return Failure(FailureMissingOutput, exitCode, "transform produced no output")
		}
		return &Result{
			Status:     StatusSuccess,
			OutputPath: outputPath,
			Size:       info.Size(),
			ExitCode:   exitCode,
		}

	case ExitCodeSignaled:
		removeOutput(outputPath)
		return Failure(FailureExit, exitCode, withStderr("transform was killed", stderr))

	default:
		removeOutput(outputPath)
		return Failure(FailureExit, exitCode, withStderr(fmt.Sprintf("transform exited with code %d", exitCode), stderr))
	}
}

func withStderr(msg string, stderr []byte) string {
	if line := lastLine(stderr); line != "" {
		return msg + ": " + line
	}
	return msg
}

// lastLine returns the last non-empty line of b.
func lastLine(b []byte) string {
	b = bytes.TrimRight(b, " \t\r\n")
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	return string(bytes.TrimSpace(b))
}

func removeOutput(path string) {
	_ = os.Remove(path)
}
