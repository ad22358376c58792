package ledger

import (
	"sort"
	"time"
)

// Stats aggregates ledger records for reporting.
type Stats struct {
	Total     int64 `json:"total" yaml:"total"`
	Succeeded int64 `json:"succeeded" yaml:"succeeded"`
	Failed    int64 `json:"failed" yaml:"failed"`

	ByOperation map[string]int64 `json:"by_operation" yaml:"by_operation"`
	ByErrorCode map[int]int64    `json:"by_error_code" yaml:"by_error_code"`
	ByErrorKind map[string]int64 `json:"by_error_kind" yaml:"by_error_kind"`

	BytesReceived int64 `json:"bytes_received" yaml:"bytes_received"`
	BytesSent     int64 `json:"bytes_sent" yaml:"bytes_sent"`

	MeanDurationMS int64 `json:"mean_duration_ms" yaml:"mean_duration_ms"`
	MaxDurationMS  int64 `json:"max_duration_ms" yaml:"max_duration_ms"`

	FirstStartedAt *time.Time `json:"first_started_at,omitempty" yaml:"first_started_at,omitempty"`
	LastStartedAt  *time.Time `json:"last_started_at,omitempty" yaml:"last_started_at,omitempty"`
}

// Filter selects records for Summarize. Zero fields match everything.
type Filter struct {
	Day       string
	Operation string
	Outcome   string
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	return (f.Day == "" || r.Day == f.Day) &&
		(f.Operation == "" || r.Operation == f.Operation) &&
		(f.Outcome == "" || r.Outcome == f.Outcome)
}

// Summarize aggregates the records that pass f.
func Summarize(records []Record, f Filter) Stats {
	s := Stats{
		ByOperation: make(map[string]int64),
		ByErrorCode: make(map[int]int64),
		ByErrorKind: make(map[string]int64),
	}

	var totalDuration int64
	for _, r := range records {
		if !f.Match(r) {
			continue
		}
		s.Total++
		s.ByOperation[r.Operation]++
		if r.Failed() {
			s.Failed++
			s.ByErrorCode[r.ErrorCode]++
			s.ByErrorKind[r.ErrorKind]++
		} else {
			s.Succeeded++
		}
		s.BytesReceived += r.PayloadBytes
		s.BytesSent += r.OutputBytes

		totalDuration += r.DurationMS
		s.MaxDurationMS = max(s.MaxDurationMS, r.DurationMS)

		started := r.StartedAt
		if s.FirstStartedAt == nil || started.Before(*s.FirstStartedAt) {
			s.FirstStartedAt = &started
		}
		if s.LastStartedAt == nil || started.After(*s.LastStartedAt) {
			s.LastStartedAt = &started
		}
	}
	if s.Total > 0 {
		s.MeanDurationMS = totalDuration / s.Total
	}
	return s
}

// SortedOperations returns the operation keys of s in name order.
func (s Stats) SortedOperations() []string {
	ops := make([]string, 0, len(s.ByOperation))
	for op := range s.ByOperation {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
