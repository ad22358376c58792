package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pithecene-io/reel/types"
)

// Outcome values recorded per session.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Partition placeholders for sessions that never decoded a known operation.
const (
	OperationNone    = "none"
	OperationUnknown = "unknown"
)

// dayLayout is the format of the day partition key.
const dayLayout = "2006-01-02"

// Record is the stored summary of one finished session.
type Record struct {
	SessionID string `json:"session_id"`
	Remote    string `json:"remote"`

	Filename  string `json:"filename"`
	Operation string `json:"operation"`
	MediaType string `json:"media_type"`

	PayloadBytes int64  `json:"payload_bytes"`
	UploadDigest string `json:"upload_digest,omitempty"`

	OutputName  string `json:"output_name,omitempty"`
	OutputBytes int64  `json:"output_bytes"`

	Outcome      string `json:"outcome"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`

	// Partition key (used by Lode HiveLayout)
	Day string `json:"day"`
}

// Failed reports whether the session ended with an error envelope.
func (r *Record) Failed() bool {
	return r.Outcome == OutcomeFailure
}

// SetError fills the failure fields from a job error.
func (r *Record) SetError(err *types.JobError) {
	r.Outcome = OutcomeFailure
	r.ErrorCode = err.Code
	r.ErrorKind = string(err.Kind)
	r.ErrorMessage = err.Error()
}

// partitionOperation maps the requested operation to a bounded set of
// partition values so client input never shapes storage paths.
func partitionOperation(op string) string {
	switch {
	case op == "":
		return OperationNone
	case types.Operation(op).IsKnown():
		return op
	default:
		return OperationUnknown
	}
}

// toRecordMap converts a Record to the map form written to Lode.
// Lode HiveLayout requires records as map[string]any.
func toRecordMap(r Record) map[string]any {
	day := r.Day
	if day == "" {
		day = r.StartedAt.UTC().Format(dayLayout)
	}
	outcome := r.Outcome
	if outcome != OutcomeFailure {
		outcome = OutcomeSuccess
	}

	m := map[string]any{
		"session_id":    r.SessionID,
		"remote":        r.Remote,
		"filename":      r.Filename,
		"operation":     partitionOperation(r.Operation),
		"media_type":    r.MediaType,
		"payload_bytes": r.PayloadBytes,
		"output_bytes":  r.OutputBytes,
		"outcome":       outcome,
		"started_at":    r.StartedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms":   r.DurationMS,
		"day":           day,
	}
	if r.UploadDigest != "" {
		m["upload_digest"] = r.UploadDigest
	}
	if r.OutputName != "" {
		m["output_name"] = r.OutputName
	}
	if outcome == OutcomeFailure {
		m["error_code"] = r.ErrorCode
		m["error_kind"] = r.ErrorKind
		m["error_message"] = r.ErrorMessage
	}
	return m
}

// fromRecordItem decodes one item read back from Lode.
func fromRecordItem(item any) (Record, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return Record{}, fmt.Errorf("failed to re-encode record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return r, nil
}
