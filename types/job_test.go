package types

import "testing"

func TestParseMediaType(t *testing.T) {
	tests := []struct {
		in   string
		want MediaType
	}{
		{"mp4", MediaMP4},
		{"MP4", MediaMP4},
		{" .avi ", MediaAVI},
		{"mp3", MediaMP3},
		{"", MediaType("")},
		{"mkv", MediaType("mkv")},
	}
	for _, tt := range tests {
		if got := ParseMediaType(tt.in); got != tt.want {
			t.Errorf("ParseMediaType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMediaTypeFromFilename(t *testing.T) {
	if got := MediaTypeFromFilename("clip.Final.AVI"); got != MediaAVI {
		t.Errorf("MediaTypeFromFilename = %q, want avi", got)
	}
	if got := MediaTypeFromFilename("noext"); got != "" {
		t.Errorf("MediaTypeFromFilename(noext) = %q, want empty", got)
	}
}

func TestMediaType_Transformable(t *testing.T) {
	if !MediaMP4.Transformable() || !MediaAVI.Transformable() {
		t.Error("mp4 and avi must be transformable")
	}
	if MediaMP3.Transformable() {
		t.Error("mp3 must not be transformable")
	}
	if MediaType("mkv").Transformable() {
		t.Error("unknown media must not be transformable")
	}
}

func TestOperation_IsKnown(t *testing.T) {
	for _, op := range Operations() {
		if !op.IsKnown() {
			t.Errorf("%s should be known", op)
		}
	}
	if Operation("blur").IsKnown() {
		t.Error("blur should not be known")
	}
}

func TestJobDescriptor_Option(t *testing.T) {
	j := &JobDescriptor{Options: map[string]string{"resolution": "640x480", "empty": ""}}
	if v, ok := j.Option("resolution"); !ok || v != "640x480" {
		t.Errorf("Option(resolution) = %q, %v", v, ok)
	}
	if _, ok := j.Option("empty"); ok {
		t.Error("empty option should report absent")
	}
	if _, ok := j.Option("missing"); ok {
		t.Error("missing option should report absent")
	}

	var nilOpts JobDescriptor
	if _, ok := nilOpts.Option("resolution"); ok {
		t.Error("nil options should report absent")
	}
}
