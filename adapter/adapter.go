// Package adapter defines the notification boundary for finished jobs.
//
// Adapters publish one JobCompletedEvent per finished session to a downstream
// system. The server owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/reel/ledger"
	"github.com/pithecene-io/reel/types"
)

// EventTypeJobCompleted is the event_type of every published event.
const EventTypeJobCompleted = "job_completed"

// JobCompletedEvent is the payload published when a session finishes.
type JobCompletedEvent struct {
	Version     string `json:"version"`
	EventType   string `json:"event_type"` // always "job_completed"
	SessionID   string `json:"session_id"`
	Remote      string `json:"remote"`
	Filename    string `json:"filename"`
	Operation   string `json:"operation"`
	MediaType   string `json:"media_type"`
	Outcome     string `json:"outcome"` // success or failure
	OutputName  string `json:"output_name,omitempty"`
	OutputBytes int64  `json:"output_bytes"`
	ErrorCode   int    `json:"error_code,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Timestamp   string `json:"timestamp"` // ISO 8601
	DurationMs  int64  `json:"duration_ms"`
}

// NewJobCompletedEvent builds the event for a finished session record.
func NewJobCompletedEvent(rec ledger.Record) *JobCompletedEvent {
	return &JobCompletedEvent{
		Version:     types.Version,
		EventType:   EventTypeJobCompleted,
		SessionID:   rec.SessionID,
		Remote:      rec.Remote,
		Filename:    rec.Filename,
		Operation:   rec.Operation,
		MediaType:   rec.MediaType,
		Outcome:     rec.Outcome,
		OutputName:  rec.OutputName,
		OutputBytes: rec.OutputBytes,
		ErrorCode:   rec.ErrorCode,
		ErrorKind:   rec.ErrorKind,
		Timestamp:   rec.StartedAt.Add(time.Duration(rec.DurationMS) * time.Millisecond).UTC().Format(time.RFC3339Nano),
		DurationMs:  rec.DurationMS,
	}
}

// Adapter publishes job completion events to a downstream system.
// Implementations must be safe for concurrent use by many sessions.
type Adapter interface {
	// Publish sends a job completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *JobCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// MaxBackoff caps the wait between retries.
const MaxBackoff = 30 * time.Second

// Backoff returns the wait before retry attempt i (i >= 1): 500ms, 1s, 2s,
// doubling up to MaxBackoff.
func Backoff(i int) time.Duration {
	d := 500 * time.Millisecond
	for n := 1; n < i && d < MaxBackoff; n++ {
		d *= 2
	}
	return min(d, MaxBackoff)
}

// Retry calls attempt up to 1+retries times with exponential backoff between
// calls. It stops early when attempt succeeds, when retriable reports false
// for the returned error, or when ctx ends.
func Retry(ctx context.Context, name string, retries int, attempt func(ctx context.Context) error, retriable func(error) bool) error {
	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		// Exponential backoff before retries (not before first attempt)
		if i > 0 {
			timer := time.NewTimer(Backoff(i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if retriable != nil && !retriable(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
