package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/reel/ledger"
	"github.com/pithecene-io/reel/types"
)

func TestNewJobCompletedEvent(t *testing.T) {
	started := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	rec := ledger.Record{
		SessionID:   "s-1",
		Remote:      "10.0.0.2:40000",
		Filename:    "clip.mp4",
		Operation:   "create_gif",
		MediaType:   "mp4",
		Outcome:     ledger.OutcomeSuccess,
		OutputName:  "clip.gif",
		OutputBytes: 2048,
		StartedAt:   started,
		DurationMS:  1500,
	}

	ev := NewJobCompletedEvent(rec)
	if ev.EventType != EventTypeJobCompleted || ev.Version != types.Version {
		t.Errorf("event header = %q/%q", ev.EventType, ev.Version)
	}
	if ev.SessionID != "s-1" || ev.OutputName != "clip.gif" || ev.OutputBytes != 2048 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Timestamp != "2026-03-04T10:00:01.5Z" {
		t.Errorf("Timestamp = %q", ev.Timestamp)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{6, 16 * time.Second},
		{7, MaxBackoff},
		{35, MaxBackoff},
		{64, MaxBackoff},
		{1000, MaxBackoff},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetry_SucceedsAfterFailure(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), "test", 2, func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_NonRetriable(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")
	err := Retry(t.Context(), "test", 3, func(context.Context) error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })

	if !errors.Is(err, permanent) || !strings.Contains(err.Error(), "non-retriable") {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	err := Retry(t.Context(), "test", 0, func(context.Context) error {
		return errors.New("down")
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "failed after 1 attempts") {
		t.Errorf("err = %v", err)
	}
}

func TestRetry_CanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err := Retry(ctx, "test", 5, func(context.Context) error {
		return errors.New("down")
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
