package replica

import "context"

// Transport delivers wire messages to neighbour replicas. Implementations
// live outside this package (spec §1: transport is out of scope for the
// core engine, specified only by interface) — see internal/transport for
// the loopback and libp2p adapters.
type Transport interface {
	SendDelta(ctx context.Context, to Endpoint, msg DeltaMessage) error
	SendAck(ctx context.Context, to Endpoint, msg AckMessage) error
}

// Inbox is the receiving half a Transport pushes into. *Replica implements
// it; a transport adapter calls DeliverDelta/DeliverAck whenever a message
// arrives from the network, without blocking on replica-internal state.
type Inbox interface {
	DeliverDelta(from Endpoint, msg DeltaMessage)
	DeliverAck(from Endpoint, msg AckMessage)
}
