// Package server accepts connections and runs one session per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pithecene-io/reel/log"
	"github.com/pithecene-io/reel/session"
)

// DefaultAddress is the default bind address.
const DefaultAddress = "127.0.0.1:12000"

// DefaultShutdownGrace bounds how long Serve waits for in-flight sessions
// after its context ends before canceling them.
const DefaultShutdownGrace = 30 * time.Second

// Accept retry backoff bounds. Every accept error other than a closed
// listener is retried.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Config configures a Listener.
type Config struct {
	// Address is the TCP bind address, used by Listen.
	Address string
	// MaxSessions bounds concurrent sessions. Zero means unbounded.
	MaxSessions int64
	// ShutdownGrace is the drain window after the serve context ends.
	// Zero cancels in-flight sessions immediately.
	ShutdownGrace time.Duration
	// Session is passed to every session.
	Session session.Config
	// Logger is optional.
	Logger *log.Logger
}

// Listener is the connection listener. Each accepted connection is served by
// its own goroutine; the accept loop never waits on a session.
type Listener struct {
	ln     net.Listener
	cfg    Config
	logger *log.Logger
	sem    *semaphore.Weighted

	active sync.WaitGroup
}

// Listen binds cfg.Address over TCP.
func Listen(cfg Config) (*Listener, error) {
	addr := cfg.Address
	if addr == "" {
		addr = DefaultAddress
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return New(ln, cfg), nil
}

// New wraps an existing listener.
func New(ln net.Listener, cfg Config) *Listener {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = logger
	}
	l := &Listener{
		ln:     ln,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.MaxSessions > 0 {
		l.sem = semaphore.NewWeighted(cfg.MaxSessions)
	}
	return l
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting connections. In-flight sessions are not affected.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Serve accepts connections until ctx is canceled or the listener is closed.
// It then waits up to the shutdown grace for in-flight sessions, cancels any
// that remain, and returns once all have finished.
//
// Accept errors and failed sessions never stop the loop, so the returned
// error is always nil once the listener is bound.
func (l *Listener) Serve(ctx context.Context) error {
	sessionCtx, cancelSessions := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSessions()

	stop := context.AfterFunc(ctx, func() {
		_ = l.ln.Close()
	})
	defer stop()

	l.logger.Info("listening", map[string]any{
		"address":      l.Addr().String(),
		"max_sessions": l.cfg.MaxSessions,
	})

	l.acceptLoop(ctx, sessionCtx)
	l.drain(cancelSessions)
	return nil
}

func (l *Listener) acceptLoop(ctx, sessionCtx context.Context) {
	var backoff time.Duration
	for {
		if l.sem != nil {
			if err := l.sem.Acquire(ctx, 1); err != nil {
				return
			}
		}

		conn, err := l.ln.Accept()
		if err != nil {
			l.release()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			// EMFILE and friends clear once sessions finish; keep accepting.
			backoff = nextBackoff(backoff)
			l.logger.Warn("accept failed, retrying", map[string]any{
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return
			}
		}
		backoff = 0

		l.active.Add(1)
		go l.handle(sessionCtx, conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(2*d, maxAcceptBackoff)
}

func (l *Listener) release() {
	if l.sem != nil {
		l.sem.Release(1)
	}
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	defer l.active.Done()
	defer l.release()

	// Run reports its own failures to the peer and the log.
	_ = session.New(conn, l.cfg.Session).Run(ctx)
}

// drain waits for in-flight sessions, canceling them after the grace period.
func (l *Listener) drain(cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		l.active.Wait()
		close(done)
	}()

	grace := l.cfg.ShutdownGrace
	if grace > 0 {
		select {
		case <-done:
			l.logger.Info("listener stopped", nil)
			return
		case <-time.After(grace):
			l.logger.Warn("shutdown grace expired, canceling sessions", map[string]any{
				"grace": grace.String(),
			})
		}
	}
	cancel()
	<-done
	l.logger.Info("listener stopped", nil)
}
