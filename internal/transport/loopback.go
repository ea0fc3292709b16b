// Package transport provides Transport implementations for
// internal/replica: an in-process Loopback used by tests and the
// replicatest harness, and a LibP2P adapter for real network deployment.
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/rechain/delta-crdt/internal/replica"
)

// Loopback routes delta and ack messages between replicas registered in
// the same process, by endpoint name. It is the transport used by
// internal/replicatest and by package tests that exercise convergence
// without a real network.
type Loopback struct {
	mu      sync.RWMutex
	inboxes map[replica.Endpoint]replica.Inbox
}

// NewLoopback returns an empty Loopback network.
func NewLoopback() *Loopback {
	return &Loopback{inboxes: make(map[replica.Endpoint]replica.Inbox)}
}

// Register associates endpoint with the Inbox (normally a *replica.Replica)
// that should receive messages addressed to it.
func (l *Loopback) Register(endpoint replica.Endpoint, inbox replica.Inbox) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inboxes[endpoint] = inbox
}

// Unregister removes endpoint, simulating a peer that has left the
// cluster; subsequent sends to it fail.
func (l *Loopback) Unregister(endpoint replica.Endpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inboxes, endpoint)
}

// SendDelta implements replica.Transport.
func (l *Loopback) SendDelta(ctx context.Context, to replica.Endpoint, msg replica.DeltaMessage) error {
	inbox, ok := l.lookup(to)
	if !ok {
		return fmt.Errorf("transport: loopback: no such endpoint %q", to)
	}
	inbox.DeliverDelta(msg.Origin, msg)
	return nil
}

// SendAck implements replica.Transport.
func (l *Loopback) SendAck(ctx context.Context, to replica.Endpoint, msg replica.AckMessage) error {
	inbox, ok := l.lookup(to)
	if !ok {
		return fmt.Errorf("transport: loopback: no such endpoint %q", to)
	}
	inbox.DeliverAck(msg.From, msg)
	return nil
}

func (l *Loopback) lookup(endpoint replica.Endpoint) (replica.Inbox, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	inbox, ok := l.inboxes[endpoint]
	return inbox, ok
}
