// Package transform runs media operations through an external tool.
package transform

import (
	"context"
)

// Status is the tag of a Result.
type Status string

const (
	// StatusSuccess means the output file is complete.
	StatusSuccess Status = "success"
	// StatusFailure means no valid output exists.
	StatusFailure Status = "failure"
)

// FailureKind classifies a failed transform.
type FailureKind string

const (
	// FailureStart means the tool could not be started.
	FailureStart FailureKind = "start"
	// FailureExit means the tool exited non-zero.
	FailureExit FailureKind = "exit"
	// FailureMissingOutput means the tool exited zero without producing output.
	FailureMissingOutput FailureKind = "missing_output"
	// FailureCanceled means the context ended before or during the run.
	FailureCanceled FailureKind = "canceled"
)

// Request is one transform invocation.
type Request struct {
	// InputPath is the uploaded file.
	InputPath string
	// OutputPath is where the output must be written.
	OutputPath string
	// Plan is the validated operation.
	Plan Plan
}

// Result is the tagged outcome of a transform.
type Result struct {
	Status Status
	// OutputPath and Size are set on success.
	OutputPath string
	Size       int64
	// Kind and Message are set on failure.
	Kind    FailureKind
	Message string
	// ExitCode is the tool exit code, or -1 if it did not exit normally.
	ExitCode int
}

// OK reports whether the transform succeeded.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

// Transformer performs one media operation.
//
// On success the complete output is at req.OutputPath. On failure no file
// at req.OutputPath may be treated as valid.
type Transformer interface {
	Run(ctx context.Context, req Request) *Result
}

// Func adapts a function to a Transformer.
type Func func(ctx context.Context, req Request) *Result

// Run calls f.
func (f Func) Run(ctx context.Context, req Request) *Result {
	return f(ctx, req)
}

// Failure builds a failure result.
func Failure(kind FailureKind, exitCode int, msg string) *Result {
	return &Result{
		Status:   StatusFailure,
		Kind:     kind,
		Message:  msg,
		ExitCode: exitCode,
	}
}
