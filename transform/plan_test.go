package transform

import (
	"errors"
	"slices"
	"testing"

	"github.com/pithecene-io/reel/types"
)

func TestNewPlan_OutputNames(t *testing.T) {
	tests := []struct {
		op       types.Operation
		options  map[string]string
		filename string
		want     string
	}{
		{types.OperationCompress, nil, "clip.mp4", "compress_clip.mp4"},
		{types.OperationChangeResolution, map[string]string{"resolution": "1280:720"}, "clip.avi", "resolution_1280:720_clip.avi"},
		{types.OperationChangeAspectRatio, map[string]string{"aspect_ratio": "16:9"}, "clip.mp4", "aspect_ratio_16:9_clip.mp4"},
		{types.OperationExtractAudio, nil, "clip.mp4", "clip.mp3"},
		{types.OperationCreateGIF, map[string]string{"start_time": "5", "duration": "2"}, "clip.avi", "clip.gif"},
		{types.OperationCreateWebM, map[string]string{"start_time": "00:00:05", "duration": "10"}, "my.clip.mp4", "my.clip.webm"},
		{types.OperationExtractAudio, nil, ".mp4", ".mp4.mp3"},
		{types.OperationExtractAudio, nil, "..mp4", "..mp4.mp3"},
		{types.OperationCreateGIF, map[string]string{"start_time": "0", "duration": "1"}, ".clip.mov", ".clip.gif"},
		{types.OperationExtractAudio, nil, "noext", "noext.mp3"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+tt.filename, func(t *testing.T) {
			plan, err := NewPlan(&types.JobDescriptor{Filename: tt.filename, Operation: tt.op, Options: tt.options})
			if err != nil {
				t.Fatalf("NewPlan failed: %v", err)
			}
			if plan.Operation() != tt.op {
				t.Errorf("Operation() = %q, want %q", plan.Operation(), tt.op)
			}
			if got := plan.OutputName(tt.filename); got != tt.want {
				t.Errorf("OutputName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewPlan_Args(t *testing.T) {
	plan, err := NewPlan(&types.JobDescriptor{
		Filename:  "a.mp4",
		Operation: types.OperationCreateGIF,
		Options:   map[string]string{"start_time": "1", "duration": "3"},
	})
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}
	want := []string{"-ss", "1", "-t", "3", "-vf", "fps=10,scale=320:-1:flags=lanczos"}
	if got := plan.Args(); !slices.Equal(got, want) {
		t.Errorf("Args = %v, want %v", got, want)
	}
}

func TestNewPlan_MissingOption(t *testing.T) {
	tests := []struct {
		op      types.Operation
		options map[string]string
		key     string
	}{
		{types.OperationChangeResolution, nil, types.OptionResolution},
		{types.OperationChangeResolution, map[string]string{"resolution": ""}, types.OptionResolution},
		{types.OperationChangeAspectRatio, map[string]string{}, types.OptionAspectRatio},
		{types.OperationCreateGIF, map[string]string{"duration": "2"}, types.OptionStartTime},
		{types.OperationCreateWebM, map[string]string{"start_time": "2"}, types.OptionDuration},
	}

	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+tt.key, func(t *testing.T) {
			_, err := NewPlan(&types.JobDescriptor{Filename: "a.mp4", Operation: tt.op, Options: tt.options})
			var jobErr *types.JobError
			if !errors.As(err, &jobErr) {
				t.Fatalf("expected *types.JobError, got %v", err)
			}
			if jobErr.Kind != types.KindMissingOption || jobErr.Code != types.CodeBadRequest {
				t.Errorf("got kind %s code %d", jobErr.Kind, jobErr.Code)
			}
		})
	}
}

func TestNewPlan_UnknownOperation(t *testing.T) {
	_, err := NewPlan(&types.JobDescriptor{Filename: "a.mp4", Operation: "rotate"})
	var jobErr *types.JobError
	if !errors.As(err, &jobErr) || jobErr.Kind != types.KindUnknownOperation {
		t.Fatalf("expected unknown operation error, got %v", err)
	}
}

func TestNewPlan_RejectsPathInOption(t *testing.T) {
	_, err := NewPlan(&types.JobDescriptor{
		Filename:  "a.mp4",
		Operation: types.OperationChangeResolution,
		Options:   map[string]string{"resolution": "../../etc"},
	})
	var jobErr *types.JobError
	if !errors.As(err, &jobErr) || jobErr.Kind != types.KindMalformedRequest {
		t.Fatalf("expected malformed request error, got %v", err)
	}
}
