package types

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestJobError_Envelope(t *testing.T) {
	tests := []struct {
		name     string
		err      *JobError
		wantCode int
		wantDesc string
	}{
		{
			name:     "unknown operation names the operation",
			err:      NewUnknownOperation("blur"),
			wantCode: 400,
			wantDesc: `Bad Request: unknown operation "blur"`,
		},
		{
			name:     "mp3",
			err:      NewUnsupportedMediaType(MediaMP3),
			wantCode: 400,
			wantDesc: "Bad Request: mp3 files are not supported",
		},
		{
			name:     "storage full",
			err:      NewStorageExceeded(10, 5, 12),
			wantCode: 507,
			wantDesc: "Storage Full: upload of 10 bytes exceeds remaining capacity (5 of 12 bytes used)",
		},
		{
			name:     "transform failure",
			err:      NewTransformFailure("ffmpeg exited with code 1", nil),
			wantCode: 500,
			wantDesc: "Internal Server Error: ffmpeg exited with code 1",
		},
		{
			name:     "missing option",
			err:      NewMissingOption(OperationChangeResolution, OptionResolution),
			wantCode: 400,
			wantDesc: `Bad Request: missing option "resolution" for change_resolution`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tt.err.Envelope()
			if env.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", env.Code, tt.wantCode)
			}
			if env.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", env.Description, tt.wantDesc)
			}
			if env.Solution == "" {
				t.Error("Solution should not be empty")
			}
		})
	}
}

func TestJobError_UnknownOperationSolutionListsOperations(t *testing.T) {
	env := NewUnknownOperation("blur").Envelope()
	for _, op := range Operations() {
		if !strings.Contains(env.Solution, string(op)) {
			t.Errorf("solution %q missing %s", env.Solution, op)
		}
	}
}

func TestJobError_Unwrap(t *testing.T) {
	err := NewTransferFailure("payload receive failed", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("JobError should unwrap to its cause")
	}
}

func TestAsJobError(t *testing.T) {
	if AsJobError(nil) != nil {
		t.Error("AsJobError(nil) should be nil")
	}

	wrapped := errors.Join(errors.New("context"), NewMissingOption(OperationCreateGIF, OptionDuration))
	if got := AsJobError(wrapped); got.Kind != KindMissingOption {
		t.Errorf("Kind = %s, want missing_option", got.Kind)
	}

	plain := AsJobError(errors.New("boom"))
	if plain.Kind != KindInternal || plain.Code != CodeInternal {
		t.Errorf("plain error mapped to %s/%d, want internal/500", plain.Kind, plain.Code)
	}
}
