// Package session drives one client connection from request header to
// response.
//
// A session reads exactly one request, stores the upload, runs one transform
// and writes exactly one response: the output file on success or an error
// envelope on failure. The connection is always closed when Run returns.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/pithecene-io/reel/adapter"
	"github.com/pithecene-io/reel/iox"
	"github.com/pithecene-io/reel/ledger"
	"github.com/pithecene-io/reel/log"
	"github.com/pithecene-io/reel/metrics"
	"github.com/pithecene-io/reel/protocol"
	"github.com/pithecene-io/reel/storage"
	"github.com/pithecene-io/reel/transform"
	"github.com/pithecene-io/reel/types"
)

// DefaultChunkSize is the buffer size for payload and output streaming.
const DefaultChunkSize = 64 * 1024

// DefaultLingerTimeout bounds how long unread request bytes are drained after
// an early error envelope.
const DefaultLingerTimeout = 2 * time.Second

// DefaultFinishTimeout bounds ledger and notification work after close.
const DefaultFinishTimeout = 10 * time.Second

// Config holds the collaborators and tuning shared by all sessions.
type Config struct {
	// UploadDir receives uploads, named by the descriptor filename.
	UploadDir string
	// OutputDir receives transform outputs.
	OutputDir string
	// Guard admits uploads against the storage ceiling (required).
	Guard *storage.Guard
	// Transformer runs the requested operation (required).
	Transformer transform.Transformer

	// ChunkSize is the streaming buffer size (default 64 KiB).
	ChunkSize int
	// ReadTimeout and WriteTimeout bound peer silence per I/O call. Zero
	// means no timeout.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// LingerTimeout bounds the drain of unread request bytes after an early
	// error. Zero disables draining.
	LingerTimeout time.Duration
	// FinishTimeout bounds ledger and adapter work after close.
	FinishTimeout time.Duration

	// Logger, Metrics, Recorder and Adapter are optional.
	Logger   *log.Logger
	Metrics  *metrics.Collector
	Recorder ledger.Recorder
	Adapter  adapter.Adapter

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ChunkSize <= 0 {
		out.ChunkSize = DefaultChunkSize
	}
	if out.FinishTimeout <= 0 {
		out.FinishTimeout = DefaultFinishTimeout
	}
	if out.Logger == nil {
		out.Logger = log.Nop()
	}
	if out.Recorder == nil {
		out.Recorder = ledger.Nop{}
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

// Session is the state machine for one connection.
type Session struct {
	id     string
	conn   net.Conn
	cfg    Config
	logger *log.Logger

	r   io.Reader
	w   *iox.CountingWriter
	buf []byte

	mu      sync.Mutex
	state   State
	history []State

	// consumed is set once the whole request has been read.
	consumed bool

	started time.Time
	rec     ledger.Record
}

// New creates a session for conn. Run must be called exactly once.
func New(conn net.Conn, cfg Config) *Session {
	c := cfg.withDefaults()
	id := uuid.NewString()
	remote := remoteAddr(conn)

	s := &Session{
		id:     id,
		conn:   conn,
		cfg:    c,
		logger: c.Logger.WithSession(id, remote),
		buf:    make([]byte, c.ChunkSize),
		state:  StateAwaitHeader,
	}
	s.rec = ledger.Record{SessionID: id, Remote: remote}
	return s
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns every state entered, in order.
func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.history...)
}

func (s *Session) enter(state State) {
	s.mu.Lock()
	s.state = state
	s.history = append(s.history, state)
	s.mu.Unlock()
}

// Run serves the connection until the response is written or the session
// fails. It returns the error reported to the peer, or nil on success.
// Canceling ctx aborts blocked I/O and any running transform.
func (s *Session) Run(ctx context.Context) (err error) {
	s.started = s.cfg.Now()
	s.rec.StartedAt = s.started
	s.cfg.Metrics.SessionStarted()

	s.r = iox.IdleReader(ctx, s.conn, s.cfg.ReadTimeout)
	s.w = &iox.CountingWriter{W: iox.IdleWriter(ctx, s.conn, s.cfg.WriteTimeout)}

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Now())
	})
	defer stop()

	var jobErr *types.JobError
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session panic", map[string]any{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			jobErr = types.NewInternalError(fmt.Errorf("panic: %v", r))
			s.fail(jobErr)
		}
		s.finish(ctx, jobErr)
		if jobErr != nil {
			err = jobErr
		}
	}()

	s.enter(StateAwaitHeader)
	s.logger.Debug("session started", nil)

	if jobErr = s.serve(ctx); jobErr != nil {
		s.fail(jobErr)
	}
	return nil
}

func (s *Session) serve(ctx context.Context) *types.JobError {
	hdr, err := protocol.ReadHeader(s.r)
	if err != nil {
		return types.NewFrameError("header receive failed", err)
	}

	s.enter(StateAwaitDescriptor)
	raw, err := protocol.ReadSection(s.r, hdr.DescriptorLen, "descriptor")
	if err != nil {
		return types.NewFrameError("descriptor receive failed", err)
	}
	job, err := protocol.DecodeDescriptor(raw)
	if err != nil {
		return types.NewMalformedRequest(err.Error(), err)
	}
	s.rec.Filename = job.Filename
	s.rec.Operation = string(job.Operation)
	if !safeFilename(job.Filename) {
		return types.NewMalformedRequest(fmt.Sprintf("filename %q must be a plain file name", job.Filename), nil)
	}

	s.enter(StateAwaitMediaType)
	tag, err := protocol.ReadSection(s.r, hdr.MediaTypeLen, "media type")
	if err != nil {
		return types.NewFrameError("media type receive failed", err)
	}
	if !utf8.Valid(tag) {
		return types.NewFrameError("media type is not valid UTF-8", nil)
	}
	media := types.ParseMediaType(string(tag))
	if media == "" {
		media = types.MediaTypeFromFilename(job.Filename)
	}
	s.rec.MediaType = string(media)

	s.enter(StateAdmissionCheck)
	adm, err := s.cfg.Guard.Admit(hdr.PayloadLen)
	if err != nil {
		return types.NewInternalError(err)
	}
	if !adm.Admitted {
		s.cfg.Metrics.AdmissionRejected()
		return types.NewStorageExceeded(adm.Incoming, adm.Used, adm.Capacity)
	}

	s.enter(StateReceivingPayload)
	if jobErr := s.receive(job.Filename, hdr.PayloadLen); jobErr != nil {
		return jobErr
	}
	s.consumed = true

	s.enter(StateDispatching)
	name, path, jobErr := s.dispatch(ctx, job, media)
	if jobErr != nil {
		return jobErr
	}

	s.enter(StateSendingResponse)
	return s.send(name, path)
}

// safeFilename reports whether name is a single local path element.
func safeFilename(name string) bool {
	return name != "" &&
		!strings.ContainsAny(name, `/\`) &&
		filepath.IsLocal(name) &&
		name != "." && name != ".."
}

// readTracker remembers the first read error so receive can tell a peer
// failure from a local write failure.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// receive streams exactly size payload bytes into the upload area.
// A zero size creates an empty file without reading.
func (s *Session) receive(filename string, size int64) *types.JobError {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return types.NewInternalError(fmt.Errorf("failed to create upload directory: %w", err))
	}
	path := filepath.Join(s.cfg.UploadDir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return types.NewInternalError(fmt.Errorf("failed to create upload: %w", err))
	}

	hasher := blake3.New()
	src := &readTracker{r: io.LimitReader(s.r, size)}
	n, copyErr := io.CopyBuffer(io.MultiWriter(f, hasher), src, s.buf)
	closeErr := f.Close()
	s.cfg.Metrics.AddBytesReceived(n)
	s.rec.PayloadBytes = n

	switch {
	case src.err != nil || (copyErr == nil && n < size):
		_ = os.Remove(path)
		cause := src.err
		if cause == nil {
			cause = io.ErrUnexpectedEOF
		}
		return types.NewTransferFailure(fmt.Sprintf("received %d of %d payload bytes", n, size), cause)
	case copyErr != nil:
		_ = os.Remove(path)
		return types.NewInternalError(fmt.Errorf("failed to store upload: %w", copyErr))
	case closeErr != nil:
		_ = os.Remove(path)
		return types.NewInternalError(fmt.Errorf("failed to store upload: %w", closeErr))
	}

	s.rec.UploadDigest = hex.EncodeToString(hasher.Sum(nil))
	s.logger.Info("upload stored", map[string]any{
		"filename": filename,
		"bytes":    n,
		"blake3":   s.rec.UploadDigest,
	})
	return nil
}

// dispatch checks the media type, builds the operation plan and runs it.
// Returns the output name and path on success.
func (s *Session) dispatch(ctx context.Context, job *types.JobDescriptor, media types.MediaType) (string, string, *types.JobError) {
	if !media.Transformable() {
		return "", "", types.NewUnsupportedMediaType(media)
	}

	plan, err := transform.NewPlan(job)
	if err != nil {
		return "", "", types.AsJobError(err)
	}

	name := plan.OutputName(job.Filename)
	req := transform.Request{
		InputPath:  filepath.Join(s.cfg.UploadDir, job.Filename),
		OutputPath: filepath.Join(s.cfg.OutputDir, name),
		Plan:       plan,
	}

	start := s.cfg.Now()
	res := s.cfg.Transformer.Run(ctx, req)
	if res == nil {
		res = transform.Failure(transform.FailureStart, transform.ExitCodeSignaled, "transform returned no result")
	}
	fields := map[string]any{
		"operation":   string(plan.Operation()),
		"output":      name,
		"duration_ms": s.cfg.Now().Sub(start).Milliseconds(),
	}
	if !res.OK() {
		s.cfg.Metrics.TransformFailed()
		fields["kind"] = string(res.Kind)
		fields["exit_code"] = res.ExitCode
		s.logger.Warn("transform failed", fields)
		return "", "", types.NewTransformFailure(res.Message, nil)
	}
	s.cfg.Metrics.TransformSucceeded()
	s.logger.Info("transform finished", fields)

	return name, req.OutputPath, nil
}

// send streams the output file as a success response.
func (s *Session) send(name, path string) *types.JobError {
	f, err := os.Open(path)
	if err != nil {
		return types.NewTransformFailure("output file is missing", err)
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return types.NewInternalError(fmt.Errorf("failed to stat output: %w", err))
	}
	size := info.Size()
	if size <= 0 || size > protocol.MaxOutputSize {
		return types.NewTransformFailure(fmt.Sprintf("output size %d cannot be sent", size), nil)
	}

	n, err := protocol.WriteSuccess(s.w, name, size, f, s.buf)
	s.cfg.Metrics.AddBytesSent(n)
	if err != nil {
		if s.committed() {
			return types.NewTransferFailure("response interrupted", err)
		}
		return types.NewInternalError(err)
	}

	s.rec.OutputName = name
	s.rec.OutputBytes = n
	s.logger.Info("response sent", map[string]any{"output": name, "bytes": n})
	return nil
}

// committed reports whether any response byte reached the connection, after
// which an error envelope can no longer be framed.
func (s *Session) committed() bool {
	return s.w.N > 0
}

// fail enters the error state and reports jobErr to the peer when the
// response has not started.
func (s *Session) fail(jobErr *types.JobError) {
	s.enter(StateError)
	s.rec.SetError(jobErr)

	fields := map[string]any{
		"kind":  string(jobErr.Kind),
		"code":  jobErr.Code,
		"error": jobErr.Error(),
	}
	if jobErr.Code >= types.CodeInternal {
		s.logger.Error("session failed", fields)
	} else {
		s.logger.Warn("session failed", fields)
	}

	if s.committed() {
		s.logger.Debug("response already started, closing without envelope", nil)
		return
	}
	if err := protocol.WriteFailure(s.w, jobErr.Envelope()); err != nil {
		s.logger.Debug("failed to send error envelope", map[string]any{"error": err.Error()})
		return
	}
	if !s.consumed {
		s.linger()
	}
}

// linger half-closes the connection and drains unread request bytes so the
// peer reads the envelope instead of a reset.
func (s *Session) linger() {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	if s.cfg.LingerTimeout <= 0 {
		return
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.LingerTimeout))
	_, _ = io.CopyBuffer(io.Discard, s.conn, s.buf)
}

// finish closes the connection, then records and publishes the outcome.
func (s *Session) finish(ctx context.Context, jobErr *types.JobError) {
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("close failed", map[string]any{"error": err.Error()})
	}
	s.enter(StateClosed)

	s.rec.DurationMS = s.cfg.Now().Sub(s.started).Milliseconds()
	if jobErr == nil {
		s.rec.Outcome = ledger.OutcomeSuccess
		s.cfg.Metrics.SessionSucceeded()
	} else {
		s.cfg.Metrics.SessionFailed(jobErr.Code, string(jobErr.Kind))
	}

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FinishTimeout)
	defer cancel()

	if err := s.cfg.Recorder.Record(finishCtx, s.rec); err != nil {
		s.cfg.Metrics.LedgerWriteFailure()
		s.logger.Error("ledger write failed", map[string]any{"error": err.Error()})
	} else if _, nop := s.cfg.Recorder.(ledger.Nop); !nop {
		s.cfg.Metrics.LedgerWriteSuccess()
	}

	if s.cfg.Adapter != nil {
		if err := s.cfg.Adapter.Publish(finishCtx, adapter.NewJobCompletedEvent(s.rec)); err != nil {
			s.logger.Warn("notification failed", map[string]any{"error": err.Error()})
		}
	}

	s.logger.Info("session closed", map[string]any{
		"outcome":     s.rec.Outcome,
		"duration_ms": s.rec.DurationMS,
	})
}
