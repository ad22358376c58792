package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pithecene-io/reel/protocol"
	"github.com/pithecene-io/reel/types"
)

func TestDescribePlan(t *testing.T) {
	tests := []struct {
		name       string
		job        types.JobDescriptor
		wantOutput string
		wantArg    string
		wantErr    bool
	}{
		{
			name:       "compress",
			job:        types.JobDescriptor{Filename: "clip.mp4", Operation: types.OperationCompress},
			wantOutput: "compress_clip.mp4",
			wantArg:    "libx264",
		},
		{
			name:       "extract audio",
			job:        types.JobDescriptor{Filename: "clip.avi", Operation: types.OperationExtractAudio},
			wantOutput: "clip.mp3",
			wantArg:    "-map",
		},
		{
			name:    "missing option",
			job:     types.JobDescriptor{Filename: "clip.mp4", Operation: types.OperationChangeResolution},
			wantErr: true,
		},
		{
			name:    "unknown operation",
			job:     types.JobDescriptor{Filename: "clip.mp4", Operation: "sharpen"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := describePlan("/opt/ffmpeg", &tt.job)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("describePlan failed: %v", err)
			}
			if info.OutputName != tt.wantOutput {
				t.Errorf("output = %q, want %q", info.OutputName, tt.wantOutput)
			}
			if info.Args[0] != "/opt/ffmpeg" {
				t.Errorf("args[0] = %q, want binary path", info.Args[0])
			}
			if !slices.Contains(info.Args, tt.wantArg) {
				t.Errorf("args %v missing %q", info.Args, tt.wantArg)
			}
			if info.Args[len(info.Args)-1] != tt.wantOutput {
				t.Errorf("last arg = %q, want output name", info.Args[len(info.Args)-1])
			}
		})
	}
}

func TestDebugPlanCommand(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(&out, DebugCommand())

	err := app.Run([]string{"reel", "debug", "plan", "-f", "json",
		"--operation", "change_resolution", "--option", "resolution=640:360", "clip.mp4"})
	if err != nil {
		t.Fatalf("debug plan failed: %v", err)
	}

	var info PlanInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if !strings.Contains(strings.Join(info.Args, " "), "scale=640:360") {
		t.Errorf("args = %v", info.Args)
	}
}

// capture builds a request prefix for job with the given media tag.
func capture(t *testing.T, job *types.JobDescriptor, media string, payload int64) []byte {
	t.Helper()
	desc, err := protocol.EncodeDescriptor(job)
	if err != nil {
		t.Fatal(err)
	}
	h, err := protocol.EncodeHeader(len(desc), len(media), payload)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.Write(h[:])
	buf.Write(desc)
	buf.WriteString(media)
	return buf.Bytes()
}

func TestDecodeRequest(t *testing.T) {
	job := &types.JobDescriptor{Filename: "clip.mp4", Operation: types.OperationCompress}
	full := capture(t, job, "mp4", 1234)

	tests := []struct {
		name      string
		raw       []byte
		wantErr   string
		wantMedia string
	}{
		{name: "complete", raw: full, wantMedia: "mp4"},
		{name: "short header", raw: full[:5], wantErr: "header"},
		{name: "truncated descriptor", raw: full[:protocol.HeaderSize+3], wantErr: "descriptor"},
		{name: "truncated media type", raw: full[:len(full)-1], wantErr: "media type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := decodeRequest(bufio.NewReader(bytes.NewReader(tt.raw)))
			if tt.wantErr != "" {
				if !strings.Contains(info.Error, tt.wantErr) {
					t.Fatalf("error = %q, want %q", info.Error, tt.wantErr)
				}
				return
			}
			if info.Error != "" {
				t.Fatalf("unexpected error %q", info.Error)
			}
			if info.PayloadLen != 1234 || info.MediaType != tt.wantMedia {
				t.Errorf("info = %+v", info)
			}
			if info.Descriptor == nil || info.Descriptor.Filename != "clip.mp4" {
				t.Errorf("descriptor = %+v", info.Descriptor)
			}
		})
	}
}

func TestDebugRequestCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.bin")
	raw := capture(t, &types.JobDescriptor{Filename: "a.avi", Operation: types.OperationCreateGIF}, "avi", 7)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	app := newTestApp(&out, DebugCommand())
	if err := app.Run([]string{"reel", "debug", "request", "-f", "yaml", path}); err != nil {
		t.Fatalf("debug request failed: %v", err)
	}
	for _, want := range []string{"payload_len: 7", "media_type: avi", "operation: create_gif"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
