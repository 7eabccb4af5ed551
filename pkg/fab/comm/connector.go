/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// Connector hands out gRPC connections
type Connector interface {
	DialContext(ctx context.Context, target string, opts ...grpc.DialOption) (*grpc.ClientConn, error)
	ReleaseConn(conn *grpc.ClientConn)
}

// CachingConnector keeps one connection per target for the lifetime of a
// client session, so stress loops do not redial for every proposal.
// Connections that reach the Shutdown state are replaced on the next dial.
type CachingConnector struct {
	lock      sync.Mutex
	conns     map[string]*grpc.ClientConn
	extraOpts []grpc.DialOption
	closed    bool
}

// NewCachingConnector creates a connector. extraOpts are appended to every
// dial, e.g. a custom context dialer.
func NewCachingConnector(extraOpts ...grpc.DialOption) *CachingConnector {
	return &CachingConnector{
		conns:     make(map[string]*grpc.ClientConn),
		extraOpts: extraOpts,
	}
}

// DialContext returns the cached connection for target or dials a new one.
// The dial blocks until the connection is ready or ctx is done.
func (cc *CachingConnector) DialContext(ctx context.Context, target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	cc.lock.Lock()
	defer cc.lock.Unlock()

	if cc.closed {
		return nil, errors.New("connector is closed")
	}
	if conn, ok := cc.conns[target]; ok {
		if conn.GetState() != connectivity.Shutdown {
			return conn, nil
		}
		delete(cc.conns, target)
	}

	logger.Debugf("dialing %s", target)
	dialOpts := append(append([]grpc.DialOption{grpc.WithBlock()}, opts...), cc.extraOpts...)
	conn, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing connection on target [%s]", target)
	}
	cc.conns[target] = conn
	return conn, nil
}

// ReleaseConn keeps the connection open for reuse
func (cc *CachingConnector) ReleaseConn(conn *grpc.ClientConn) {}

// Close closes all cached connections
func (cc *CachingConnector) Close() {
	cc.lock.Lock()
	defer cc.lock.Unlock()

	if cc.closed {
		logger.Warn("Trying to close connector after already closed")
		return
	}
	for target, conn := range cc.conns {
		if err := conn.Close(); err != nil {
			logger.Debugf("closing connection to %s failed: %s", target, err)
		}
	}
	cc.conns = nil
	cc.closed = true
}

// OneShotConnector dials a new connection each time and closes it on release
type OneShotConnector struct {
	ExtraOpts []grpc.DialOption
}

// DialContext dials target
func (o *OneShotConnector) DialContext(ctx context.Context, target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := append(append([]grpc.DialOption{grpc.WithBlock()}, opts...), o.ExtraOpts...)
	conn, err := grpc.DialContext(ctx, target, dialOpts...)
	return conn, errors.Wrapf(err, "dialing connection on target [%s]", target)
}

// ReleaseConn closes conn
func (o *OneShotConnector) ReleaseConn(conn *grpc.ClientConn) {
	if err := conn.Close(); err != nil {
		logger.Debugf("closing connection failed: %s", err)
	}
}
