package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/cli/config"
	"github.com/pithecene-io/reel/ledger"
)

var seedStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedRecords() []ledger.Record {
	return []ledger.Record{
		{
			SessionID: "a1b2c3", Filename: "clip.mp4", Operation: "compress", MediaType: "mp4",
			PayloadBytes: 100, OutputBytes: 40, Outcome: ledger.OutcomeSuccess,
			StartedAt: seedStart, DurationMS: 120,
		},
		{
			SessionID: "a1ffee", Filename: "song.mp3", Operation: "extract_audio", MediaType: "mp3",
			PayloadBytes: 10, Outcome: ledger.OutcomeFailure, ErrorCode: 400, ErrorKind: "unsupported_media_type",
			ErrorMessage: "unsupported media type", StartedAt: seedStart.Add(time.Hour), DurationMS: 5,
		},
		{
			SessionID: "d4e5f6", Filename: "big.mp4", Operation: "create_gif", MediaType: "mp4",
			PayloadBytes: 900, Outcome: ledger.OutcomeFailure, ErrorCode: 507, ErrorKind: "storage_exceeded",
			StartedAt: seedStart.Add(24 * time.Hour), DurationMS: 2,
		},
	}
}

// seedLedger writes seedRecords to a filesystem ledger and returns its root.
func seedLedger(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	l, err := ledger.NewFS(ledger.DefaultDataset, root)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	for _, rec := range seedRecords() {
		if err := l.Record(t.Context(), rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	return root
}

func TestStatsJobs_FromFSLedger(t *testing.T) {
	root := seedLedger(t)
	var out bytes.Buffer
	app := newTestApp(&out, StatsCommand())

	if err := app.Run([]string{"reel", "stats", "jobs", "--format", "json", "--ledger-path", root}); err != nil {
		t.Fatalf("stats jobs failed: %v", err)
	}

	var stats ledger.Stats
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if stats.Total != 3 || stats.Succeeded != 1 || stats.Failed != 2 {
		t.Errorf("totals = %d/%d/%d, want 3/1/2", stats.Total, stats.Succeeded, stats.Failed)
	}
	if stats.ByErrorCode[507] != 1 || stats.ByErrorCode[400] != 1 {
		t.Errorf("by_error_code = %v", stats.ByErrorCode)
	}
}

func TestStatsJobs_Filters(t *testing.T) {
	root := seedLedger(t)

	tests := []struct {
		name string
		args []string
		want int64
	}{
		{"day", []string{"--day", "2026-03-01"}, 2},
		{"operation", []string{"--operation", "create_gif"}, 1},
		{"outcome", []string{"--outcome", "failure"}, 2},
		{"no match", []string{"--day", "1999-01-01"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			app := newTestApp(&out, StatsCommand())
			args := append([]string{"reel", "stats", "jobs", "-f", "json", "--ledger-path", root}, tt.args...)
			if err := app.Run(args); err != nil {
				t.Fatalf("stats jobs failed: %v", err)
			}
			var stats ledger.Stats
			if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if stats.Total != tt.want {
				t.Errorf("total = %d, want %d", stats.Total, tt.want)
			}
		})
	}
}

func TestStatsErrors(t *testing.T) {
	root := seedLedger(t)
	var out bytes.Buffer
	app := newTestApp(&out, StatsCommand())

	if err := app.Run([]string{"reel", "stats", "errors", "-f", "yaml", "--ledger-path", root}); err != nil {
		t.Fatalf("stats errors failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"failed: 2", "storage_exceeded: 1", "507: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestStats_InvalidOutcome(t *testing.T) {
	app := newTestApp(&bytes.Buffer{}, StatsCommand())
	err := app.Run([]string{"reel", "stats", "jobs", "--ledger-path", t.TempDir(), "--outcome", "maybe"})
	if err == nil || !strings.Contains(err.Error(), "--outcome must be success or failure") {
		t.Fatalf("err = %v", err)
	}
}

func TestStats_NoLedger(t *testing.T) {
	app := newTestApp(&bytes.Buffer{}, StatsCommand())
	err := app.Run([]string{"reel", "stats", "jobs"})
	if err == nil || !strings.Contains(err.Error(), "no ledger configured") {
		t.Fatalf("err = %v, want no ledger", err)
	}
	if code := exitCode(err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestStats_EmptyLedger(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(&out, StatsCommand())
	if err := app.Run([]string{"reel", "stats", "jobs", "-f", "json", "--ledger-path", t.TempDir()}); err != nil {
		t.Fatalf("stats on empty ledger failed: %v", err)
	}
	if !strings.Contains(out.String(), `"total": 0`) {
		t.Errorf("output = %s", out.String())
	}
}

func TestListSessions(t *testing.T) {
	root := seedLedger(t)
	var out bytes.Buffer
	app := newTestApp(&out, ListCommand())

	if err := app.Run([]string{"reel", "list", "sessions", "-f", "json", "--ledger-path", root, "--limit", "2"}); err != nil {
		t.Fatalf("list sessions failed: %v", err)
	}

	var rows []SessionRow
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].SessionID != "d4e5f6" || rows[1].SessionID != "a1ffee" {
		t.Errorf("order = %s, %s; want newest first", rows[0].SessionID, rows[1].SessionID)
	}
}

func TestListSessions_RejectsTUI(t *testing.T) {
	app := newTestApp(&bytes.Buffer{}, ListCommand())
	err := app.Run([]string{"reel", "list", "sessions", "--tui", "--ledger-path", t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "--tui is not supported") {
		t.Fatalf("err = %v", err)
	}
}

func TestSessionRows(t *testing.T) {
	records := seedRecords()

	rows := sessionRows(records, ledger.Filter{Outcome: ledger.OutcomeFailure}, 0)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r.Outcome != ledger.OutcomeFailure {
			t.Errorf("row %s outcome = %s", r.SessionID, r.Outcome)
		}
	}

	if rows := sessionRows(records, ledger.Filter{}, 1); len(rows) != 1 {
		t.Errorf("limit ignored: %d rows", len(rows))
	}
}

func TestInspectSession(t *testing.T) {
	root := seedLedger(t)
	var out bytes.Buffer
	app := newTestApp(&out, InspectCommand())

	if err := app.Run([]string{"reel", "inspect", "session", "-f", "json", "--ledger-path", root, "d4e5"}); err != nil {
		t.Fatalf("inspect session failed: %v", err)
	}

	var rec ledger.Record
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if rec.SessionID != "d4e5f6" || rec.ErrorCode != 507 || rec.Filename != "big.mp4" {
		t.Errorf("record = %+v", rec)
	}
}

func TestInspectSession_MissingID(t *testing.T) {
	app := newTestApp(&bytes.Buffer{}, InspectCommand())
	err := app.Run([]string{"reel", "inspect", "session"})
	if err == nil || !strings.Contains(err.Error(), "session-id required") {
		t.Fatalf("err = %v", err)
	}
}

func TestFindSession(t *testing.T) {
	records := seedRecords()

	tests := []struct {
		id      string
		want    string
		wantErr string
	}{
		{id: "a1b2c3", want: "a1b2c3"},
		{id: "d4", want: "d4e5f6"},
		{id: "a1", wantErr: "ambiguous"},
		{id: "zz", wantErr: "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rec, err := findSession(records, tt.id)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("findSession failed: %v", err)
			}
			if rec.SessionID != tt.want {
				t.Errorf("got %s, want %s", rec.SessionID, tt.want)
			}
		})
	}
}

func TestOpenLedger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LedgerConfig
		wantErr error
		errText string
	}{
		{name: "disabled", cfg: config.LedgerConfig{}, wantErr: errNoLedger},
		{name: "fs", cfg: config.LedgerConfig{Backend: "fs", Path: t.TempDir(), Dataset: "reel"}},
		{name: "s3 without bucket", cfg: config.LedgerConfig{Backend: "s3", Dataset: "reel"}, errText: "bucket is required"},
		{name: "unknown", cfg: config.LedgerConfig{Backend: "gcs", Path: "x"}, errText: "unknown ledger backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := openLedger(t.Context(), tt.cfg)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.errText != "":
				if err == nil || !strings.Contains(err.Error(), tt.errText) {
					t.Fatalf("err = %v, want %q", err, tt.errText)
				}
			default:
				if err != nil {
					t.Fatalf("openLedger failed: %v", err)
				}
				if l.Dataset() != tt.cfg.Dataset {
					t.Errorf("dataset = %q", l.Dataset())
				}
			}
		})
	}
}

func TestTUIFallsBackToStaticFrame(t *testing.T) {
	root := seedLedger(t)

	tests := []struct {
		name string
		cmd  func() *cli.Command
		args []string
		want string
	}{
		{"stats jobs", StatsCommand, []string{"stats", "jobs"}, "Job Statistics"},
		{"stats errors", StatsCommand, []string{"stats", "errors"}, "storage_exceeded"},
		{"inspect", InspectCommand, []string{"inspect", "session"}, "Session d4e5f6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			app := newTestApp(&out, tt.cmd())
			args := append([]string{"reel"}, tt.args...)
			args = append(args, "--tui", "--ledger-path", root)
			if tt.name == "inspect" {
				args = append(args, "d4e5f6")
			}
			if err := app.Run(args); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}
