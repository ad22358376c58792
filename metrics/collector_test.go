package metrics

import (
	"sync"
	"testing"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("127.0.0.1:12000", "fs")

	c.SessionStarted()
	c.SessionStarted()
	c.SessionStarted()
	c.SessionSucceeded()
	c.SessionFailed(400, "unknown_operation")
	c.AdmissionRejected()
	c.AddBytesReceived(100)
	c.AddBytesReceived(23)
	c.AddBytesSent(7)
	c.TransformSucceeded()
	c.TransformFailed()
	c.TransformFailed()
	c.LedgerWriteSuccess()
	c.LedgerWriteFailure()

	s := c.Snapshot()

	if s.SessionsStarted != 3 {
		t.Errorf("SessionsStarted = %d, want 3", s.SessionsStarted)
	}
	if s.SessionsSucceeded != 1 {
		t.Errorf("SessionsSucceeded = %d, want 1", s.SessionsSucceeded)
	}
	if s.SessionsFailed != 1 {
		t.Errorf("SessionsFailed = %d, want 1", s.SessionsFailed)
	}
	if s.SessionsActive != 1 {
		t.Errorf("SessionsActive = %d, want 1", s.SessionsActive)
	}
	if s.ErrorsByCode[400] != 1 {
		t.Errorf("ErrorsByCode[400] = %d, want 1", s.ErrorsByCode[400])
	}
	if s.ErrorsByKind["unknown_operation"] != 1 {
		t.Errorf("ErrorsByKind = %v", s.ErrorsByKind)
	}
	if s.AdmissionsRejected != 1 {
		t.Errorf("AdmissionsRejected = %d, want 1", s.AdmissionsRejected)
	}
	if s.BytesReceived != 123 || s.BytesSent != 7 {
		t.Errorf("bytes = %d/%d, want 123/7", s.BytesReceived, s.BytesSent)
	}
	if s.TransformsSucceeded != 1 || s.TransformsFailed != 2 {
		t.Errorf("transforms = %d/%d, want 1/2", s.TransformsSucceeded, s.TransformsFailed)
	}
	if s.LedgerWriteSuccess != 1 || s.LedgerWriteFailure != 1 {
		t.Errorf("ledger = %d/%d, want 1/1", s.LedgerWriteSuccess, s.LedgerWriteFailure)
	}
	if s.Address != "127.0.0.1:12000" || s.StorageBackend != "fs" {
		t.Errorf("dimensions = %q/%q", s.Address, s.StorageBackend)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	c.SessionStarted()
	c.SessionSucceeded()
	c.SessionFailed(500, "internal")
	c.AdmissionRejected()
	c.AddBytesReceived(1)
	c.AddBytesSent(1)
	c.TransformSucceeded()
	c.TransformFailed()
	c.LedgerWriteSuccess()
	c.LedgerWriteFailure()

	s := c.Snapshot()
	if s.SessionsStarted != 0 || s.ErrorsByCode != nil {
		t.Errorf("nil collector snapshot = %+v, want zero", s)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("", "")
	c.SessionStarted()
	c.SessionFailed(507, "storage_exceeded")

	s := c.Snapshot()
	c.SessionStarted()
	c.SessionFailed(507, "storage_exceeded")

	if s.ErrorsByCode[507] != 1 {
		t.Errorf("snapshot mutated: ErrorsByCode[507] = %d", s.ErrorsByCode[507])
	}
	s.ErrorsByKind["storage_exceeded"] = 99
	if c.Snapshot().ErrorsByKind["storage_exceeded"] != 2 {
		t.Error("collector mutated through snapshot map")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("", "")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.SessionStarted()
			c.AddBytesReceived(10)
			c.SessionSucceeded()
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.SessionsStarted != 50 || s.SessionsSucceeded != 50 || s.SessionsActive != 0 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.BytesReceived != 500 {
		t.Errorf("BytesReceived = %d, want 500", s.BytesReceived)
	}
}

func TestSnapshot_Fields(t *testing.T) {
	c := NewCollector("addr", "s3")
	c.AddBytesSent(5)
	f := c.Snapshot().Fields()
	if f["bytes_sent"] != int64(5) || f["storage_backend"] != "s3" {
		t.Errorf("Fields = %v", f)
	}
}
