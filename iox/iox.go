// Package iox provides I/O helpers for resource cleanup and connection I/O.
package iox

import (
	"context"
	"io"
	"time"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
func DiscardErr(fn func() error) { _ = fn() }

// ReadDeadliner is the subset of net.Conn used by IdleReader.
type ReadDeadliner interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// WriteDeadliner is the subset of net.Conn used by IdleWriter.
type WriteDeadliner interface {
	io.Writer
	SetWriteDeadline(t time.Time) error
}

// IdleReader returns a reader that extends the read deadline by timeout
// before every Read, so a stalled peer fails after timeout of silence.
// Once ctx is done the deadline is pinned to the past instead, so a
// cancellation that set an expired deadline is never pushed back.
// A non-positive timeout returns r unchanged.
func IdleReader(ctx context.Context, r ReadDeadliner, timeout time.Duration) io.Reader {
	if timeout <= 0 {
		return r
	}
	return &idleReader{ctx: ctx, r: r, timeout: timeout}
}

type idleReader struct {
	ctx     context.Context
	r       ReadDeadliner
	timeout time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	if err := extend(ir.ctx, ir.r.SetReadDeadline, ir.timeout); err != nil {
		return 0, err
	}
	return ir.r.Read(p)
}

// IdleWriter is the write-side counterpart of IdleReader.
func IdleWriter(ctx context.Context, w WriteDeadliner, timeout time.Duration) io.Writer {
	if timeout <= 0 {
		return w
	}
	return &idleWriter{ctx: ctx, w: w, timeout: timeout}
}

type idleWriter struct {
	ctx     context.Context
	w       WriteDeadliner
	timeout time.Duration
}

func (iw *idleWriter) Write(p []byte) (int, error) {
	if err := extend(iw.ctx, iw.w.SetWriteDeadline, iw.timeout); err != nil {
		return 0, err
	}
	return iw.w.Write(p)
}

// extend moves the deadline timeout into the future, then re-checks ctx.
// A cancel callback that fires after the check runs after this Set, so its
// expired deadline always wins.
func extend(ctx context.Context, set func(time.Time) error, timeout time.Duration) error {
	if err := set(time.Now().Add(timeout)); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return set(time.Now())
	}
	return nil
}

// CountingWriter counts bytes passed through to W.
type CountingWriter struct {
	W io.Writer
	N int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}
