package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure that is reported to the peer.
type ErrorKind string

// Error kinds. Every kind maps to exactly one ErrorEnvelope.
const (
	KindFrame                ErrorKind = "frame_error"
	KindMalformedRequest     ErrorKind = "malformed_request"
	KindUnsupportedMediaType ErrorKind = "unsupported_media_type"
	KindUnknownOperation     ErrorKind = "unknown_operation"
	KindMissingOption        ErrorKind = "missing_option"
	KindStorageExceeded      ErrorKind = "storage_exceeded"
	KindTransferFailure      ErrorKind = "transfer_failure"
	KindTransformFailure     ErrorKind = "transform_failure"
	KindInternal             ErrorKind = "internal"
)

// Status codes carried in error envelopes.
const (
	CodeBadRequest  = 400
	CodeInternal    = 500
	CodeStorageFull = 507
)

const (
	reasonBadRequest  = "Bad Request"
	reasonInternal    = "Internal Server Error"
	reasonStorageFull = "Storage Full"
)

// ErrorEnvelope is the JSON body sent in place of a success response.
type ErrorEnvelope struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Solution    string `json:"solution"`
}

// JobError is a failure that terminates a session with an ErrorEnvelope.
type JobError struct {
	Kind     ErrorKind
	Code     int
	Reason   string
	Detail   string
	Solution string
	Err      error
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Detail)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Envelope converts the error to its wire representation.
func (e *JobError) Envelope() ErrorEnvelope {
	desc := e.Reason
	if e.Detail != "" {
		desc = e.Reason + ": " + e.Detail
	}
	return ErrorEnvelope{
		Code:        e.Code,
		Description: desc,
		Solution:    e.Solution,
	}
}

// AsJobError extracts a *JobError from err's chain.
// Errors of any other type become KindInternal.
func AsJobError(err error) *JobError {
	if err == nil {
		return nil
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr
	}
	return NewInternalError(err)
}

// NewFrameError reports a short or undecodable frame section.
func NewFrameError(detail string, err error) *JobError {
	return &JobError{
		Kind:     KindFrame,
		Code:     CodeBadRequest,
		Reason:   reasonBadRequest,
		Detail:   detail,
		Solution: "Send the full 8-byte header followed by the descriptor and media type sections.",
		Err:      err,
	}
}

// NewMalformedRequest reports a descriptor that is not valid JSON or lacks
// required fields.
func NewMalformedRequest(detail string, err error) *JobError {
	return &JobError{
		Kind:     KindMalformedRequest,
		Code:     CodeBadRequest,
		Reason:   reasonBadRequest,
		Detail:   detail,
		Solution: `Send a UTF-8 JSON object with "filename", "operation" and optional "options".`,
		Err:      err,
	}
}

// NewUnsupportedMediaType reports a media type that cannot be transformed.
func NewUnsupportedMediaType(media MediaType) *JobError {
	detail := fmt.Sprintf("unsupported media type %q", string(media))
	if media == MediaMP3 {
		detail = "mp3 files are not supported"
	}
	return &JobError{
		Kind:     KindUnsupportedMediaType,
		Code:     CodeBadRequest,
		Reason:   reasonBadRequest,
		Detail:   detail,
		Solution: "Upload an mp4 or avi file.",
	}
}

// NewUnknownOperation reports an operation name outside the supported set.
func NewUnknownOperation(op Operation) *JobError {
	names := make([]string, 0, len(Operations()))
	for _, o := range Operations() {
		names = append(names, string(o))
	}
	return &JobError{
		Kind:     KindUnknownOperation,
		Code:     CodeBadRequest,
		Reason:   reasonBadRequest,
		Detail:   fmt.Sprintf("unknown operation %q", string(op)),
		Solution: "Use one of: " + strings.Join(names, ", ") + ".",
	}
}

// NewMissingOption reports an operation invoked without a required option.
func NewMissingOption(op Operation, key string) *JobError {
	return &JobError{
		Kind:     KindMissingOption,
		Code:     CodeBadRequest,
		Reason:   reasonBadRequest,
		Detail:   fmt.Sprintf("missing option %q for %s", key, op),
		Solution: fmt.Sprintf("Set options.%s in the request descriptor.", key),
	}
}

// NewStorageExceeded reports that admitting the upload would exceed capacity.
func NewStorageExceeded(incoming, used, capacity int64) *JobError {
	return &JobError{
		Kind:     KindStorageExceeded,
		Code:     CodeStorageFull,
		Reason:   reasonStorageFull,
		Detail:   fmt.Sprintf("upload of %d bytes exceeds remaining capacity (%d of %d bytes used)", incoming, used, capacity),
		Solution: "The server does not have enough space for this upload. Retry later or send a smaller file.",
	}
}

// NewTransferFailure reports a short read or write on the connection.
func NewTransferFailure(detail string, err error) *JobError {
	return &JobError{
		Kind:     KindTransferFailure,
		Code:     CodeBadRequest,
		Reason:   reasonBadRequest,
		Detail:   detail,
		Solution: "The upload was interrupted. Resend the complete file.",
		Err:      err,
	}
}

// NewTransformFailure reports a failed external transformation.
func NewTransformFailure(detail string, err error) *JobError {
	return &JobError{
		Kind:     KindTransformFailure,
		Code:     CodeInternal,
		Reason:   reasonInternal,
		Detail:   detail,
		Solution: "Check that the input is a valid video and the options are well formed.",
		Err:      err,
	}
}

// NewInternalError reports an unexpected server-side failure.
func NewInternalError(err error) *JobError {
	detail := "unexpected server error"
	if err != nil {
		detail = err.Error()
	}
	return &JobError{
		Kind:     KindInternal,
		Code:     CodeInternal,
		Reason:   reasonInternal,
		Detail:   detail,
		Solution: "Retry the request. If the problem persists, contact the server operator.",
		Err:      err,
	}
}
