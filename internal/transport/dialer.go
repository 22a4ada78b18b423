// ============================================================================
// Beaver-Distbuild Transport
// ============================================================================
//
// Package: internal/transport
// File: dialer.go
// Function: Connection-cache gRPC dialer shared by the orchestrator's
// RemoteWorkerDriver (dialing out to workers) and a worker's outbound calls
// back to the orchestrator. Adapted from internal/raft/transport.go's
// getClient pattern, generalized from a single peer-service type to any
// grpc.ClientConnInterface-based stub via a constructor function.
//
// ============================================================================

package transport

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dialer caches *grpc.ClientConn by address so repeated calls to the same
// peer reuse one connection instead of dialing fresh each time.
type Dialer struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn

	dialOpts []grpc.DialOption
}

// New creates a Dialer. Extra dial options (keepalive params, interceptors,
// TLS credentials) can be supplied; insecure transport credentials are
// always included as a default since distrun runs over trusted build-farm
// networks.
func New(extraOpts ...grpc.DialOption) *Dialer {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, extraOpts...)
	return &Dialer{
		conns:    make(map[string]*grpc.ClientConn),
		dialOpts: opts,
	}
}

// Conn returns a cached or freshly dialed connection to addr.
func (d *Dialer) Conn(addr string) (*grpc.ClientConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if conn, ok := d.conns[addr]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(addr, d.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	d.conns[addr] = conn
	return conn, nil
}

// Forget closes and evicts the cached connection to addr, if any, so a
// later Conn call redials rather than reusing a dead connection.
func (d *Dialer) Forget(addr string) {
	d.mu.Lock()
	conn, ok := d.conns[addr]
	if ok {
		delete(d.conns, addr)
	}
	d.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// CloseAll tears down every cached connection. Called during process shutdown.
func (d *Dialer) CloseAll() {
	d.mu.Lock()
	conns := d.conns
	d.conns = make(map[string]*grpc.ClientConn)
	d.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// WithClient dials addr and hands the resulting connection to build, which
// typically wraps it in a generated NewXxxClient constructor. ctx is only
// checked for cancellation before dialing and is not passed to the dial;
// grpc.NewClient does not block.
func WithClient[T any](ctx context.Context, d *Dialer, addr string, build func(*grpc.ClientConn) T) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
	}
	conn, err := d.Conn(addr)
	if err != nil {
		return zero, err
	}
	return build(conn), nil
}
