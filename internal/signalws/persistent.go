package signalws

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gwillem/signal-groups/internal/proto"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// PersistentConn wraps a Conn and redials when a request fails at the
// transport level. Group updates are full state replacements, so replaying
// a request after a broken connection is safe.
type PersistentConn struct {
	mu      sync.Mutex
	conn    *Conn
	url     string
	tlsConf *tls.Config
	headers http.Header
	closed  atomic.Bool

	maxAttempts int
	retryDelay  time.Duration
	logger      *log.Logger
}

// Option configures a PersistentConn.
type Option func(*PersistentConn)

// WithMaxAttempts sets how many times a request is tried before giving up.
func WithMaxAttempts(n int) Option {
	return func(pc *PersistentConn) { pc.maxAttempts = max(n, 1) }
}

// WithRetryDelay sets the pause between a failed attempt and the redial.
func WithRetryDelay(d time.Duration) Option {
	return func(pc *PersistentConn) { pc.retryDelay = d }
}

// WithHeaders sets HTTP headers for the WebSocket upgrade request.
func WithHeaders(h http.Header) Option {
	return func(pc *PersistentConn) { pc.headers = h }
}

// WithLogger logs reconnect attempts.
func WithLogger(l *log.Logger) Option {
	return func(pc *PersistentConn) { pc.logger = l }
}

// DialPersistent dials a WebSocket and returns a PersistentConn that
// reconnects on demand.
func DialPersistent(ctx context.Context, url string, tlsConf *tls.Config, opts ...Option) (*PersistentConn, error) {
	pc := &PersistentConn{
		url:         url,
		tlsConf:     tlsConf,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
	for _, o := range opts {
		o(pc)
	}

	conn, err := Dial(ctx, url, tlsConf, pc.headers)
	if err != nil {
		return nil, err
	}
	pc.conn = conn
	return pc, nil
}

// Request sends a request on the current connection, redialing and
// retrying when the connection is broken. A response with any status is
// returned as is.
func (pc *PersistentConn) Request(ctx context.Context, verb, path string, body []byte, headers ...string) (*proto.WebSocketResponseMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= pc.maxAttempts; attempt++ {
		if attempt > 1 && !pc.wait(ctx) {
			break
		}

		conn, err := pc.current(ctx)
		if err != nil {
			if pc.closed.Load() {
				return nil, err
			}
			lastErr = err
			continue
		}

		resp, err := conn.Request(ctx, verb, path, body, headers...)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		logf(pc.logger, "signalws: request %s %s failed (attempt %d/%d): %v", verb, path, attempt, pc.maxAttempts, err)
		pc.drop(conn)
	}
	return nil, fmt.Errorf("signalws: request %s %s: %w", verb, path, lastErr)
}

// Close closes the connection. No further reconnects will happen.
func (pc *PersistentConn) Close() error {
	if pc.closed.Swap(true) {
		return nil // already closed
	}
	pc.mu.Lock()
	conn := pc.conn
	pc.conn = nil
	pc.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// drop forgets conn if it is still the current connection.
func (pc *PersistentConn) drop(conn *Conn) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.conn == conn {
		pc.conn.CloseNow()
		pc.conn = nil
	}
}

func (pc *PersistentConn) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(pc.retryDelay):
		return true
	}
}

// current returns the live connection, redialing if it was dropped.
func (pc *PersistentConn) current(ctx context.Context) (*Conn, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.closed.Load() {
		return nil, fmt.Errorf("signalws: persistent conn closed")
	}
	if pc.conn != nil {
		return pc.conn, nil
	}

	conn, err := Dial(ctx, pc.url, pc.tlsConf, pc.headers)
	if err != nil {
		return nil, fmt.Errorf("signalws: reconnect: %w", err)
	}
	logf(pc.logger, "signalws: reconnected to %s", pc.url)
	pc.conn = conn
	return conn, nil
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
