// Package metrics provides server-wide session counters.
//
// The Collector accumulates counters for the lifetime of one server. It is a
// leaf package with no internal dependencies; error kinds are recorded as
// plain strings.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64
	SessionsSucceeded int64
	SessionsFailed    int64
	SessionsActive    int64

	// Failures
	ErrorsByCode map[int]int64
	ErrorsByKind map[string]int64

	// Admission
	AdmissionsRejected int64

	// Transfer
	BytesReceived int64
	BytesSent     int64

	// Transform
	TransformsSucceeded int64
	TransformsFailed    int64

	// Ledger
	LedgerWriteSuccess int64
	LedgerWriteFailure int64

	// Dimensions (informational, set at construction)
	Address        string
	StorageBackend string
}

// Collector accumulates server metrics.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsSucceeded int64
	sessionsFailed    int64
	sessionsActive    int64

	errorsByCode map[int]int64
	errorsByKind map[string]int64

	admissionsRejected int64

	bytesReceived int64
	bytesSent     int64

	transformsSucceeded int64
	transformsFailed    int64

	ledgerWriteSuccess int64
	ledgerWriteFailure int64

	address        string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(address, storageBackend string) *Collector {
	return &Collector{
		errorsByCode:   make(map[int]int64),
		errorsByKind:   make(map[string]int64),
		address:        address,
		storageBackend: storageBackend,
	}
}

// --- Session lifecycle ---

// SessionStarted records an accepted connection.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.sessionsActive++
	c.mu.Unlock()
}

// SessionSucceeded records a session closed after a success response.
func (c *Collector) SessionSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsSucceeded++
	c.sessionsActive--
	c.mu.Unlock()
}

// SessionFailed records a session closed in the error state.
func (c *Collector) SessionFailed(code int, kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsFailed++
	c.sessionsActive--
	c.errorsByCode[code]++
	c.errorsByKind[kind]++
	c.mu.Unlock()
}

// --- Admission ---

// AdmissionRejected records an upload refused by the storage guard.
func (c *Collector) AdmissionRejected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.admissionsRejected++
	c.mu.Unlock()
}

// --- Transfer ---

// AddBytesReceived adds payload bytes written to the upload area.
func (c *Collector) AddBytesReceived(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesReceived += n
	c.mu.Unlock()
}

// AddBytesSent adds output bytes written to peers.
func (c *Collector) AddBytesSent(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesSent += n
	c.mu.Unlock()
}

// --- Transform ---

// TransformSucceeded records a transform that produced output.
func (c *Collector) TransformSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transformsSucceeded++
	c.mu.Unlock()
}

// TransformFailed records a transform that produced no valid output.
func (c *Collector) TransformFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transformsFailed++
	c.mu.Unlock()
}

// --- Ledger ---
// Ledger counters are per record.

// LedgerWriteSuccess records a persisted job record.
func (c *Collector) LedgerWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ledgerWriteSuccess++
	c.mu.Unlock()
}

// LedgerWriteFailure records a job record that could not be persisted.
func (c *Collector) LedgerWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ledgerWriteFailure++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byCode := make(map[int]int64, len(c.errorsByCode))
	for k, v := range c.errorsByCode {
		byCode[k] = v
	}
	byKind := make(map[string]int64, len(c.errorsByKind))
	for k, v := range c.errorsByKind {
		byKind[k] = v
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsSucceeded: c.sessionsSucceeded,
		SessionsFailed:    c.sessionsFailed,
		SessionsActive:    c.sessionsActive,

		ErrorsByCode: byCode,
		ErrorsByKind: byKind,

		AdmissionsRejected: c.admissionsRejected,

		BytesReceived: c.bytesReceived,
		BytesSent:     c.bytesSent,

		TransformsSucceeded: c.transformsSucceeded,
		TransformsFailed:    c.transformsFailed,

		LedgerWriteSuccess: c.ledgerWriteSuccess,
		LedgerWriteFailure: c.ledgerWriteFailure,

		Address:        c.address,
		StorageBackend: c.storageBackend,
	}
}

// Fields flattens the snapshot for structured logging.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"sessions_started":     s.SessionsStarted,
		"sessions_succeeded":   s.SessionsSucceeded,
		"sessions_failed":      s.SessionsFailed,
		"sessions_active":      s.SessionsActive,
		"errors_by_code":       s.ErrorsByCode,
		"errors_by_kind":       s.ErrorsByKind,
		"admissions_rejected":  s.AdmissionsRejected,
		"bytes_received":       s.BytesReceived,
		"bytes_sent":           s.BytesSent,
		"transforms_succeeded": s.TransformsSucceeded,
		"transforms_failed":    s.TransformsFailed,
		"ledger_write_success": s.LedgerWriteSuccess,
		"ledger_write_failure": s.LedgerWriteFailure,
		"address":              s.Address,
		"storage_backend":      s.StorageBackend,
	}
}
