package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	golibp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/rechain/delta-crdt/internal/replica"
	"github.com/rechain/delta-crdt/pkg/crdt"
)

const streamProtocol = protocol.ID("/delta-crdt/anti-entropy/1.0.0")

// wireEnvelope is the JSON frame exchanged over a libp2p stream: a tagged
// union of the two wire messages the engine knows about (spec §6).
type wireEnvelope struct {
	Kind           string          `json:"kind"` // "delta" or "ack"
	Origin         string          `json:"origin,omitempty"`
	From           string          `json:"from,omitempty"`
	SequenceNumber uint64          `json:"sequence_number"`
	LatticeType    string          `json:"lattice_type,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// LibP2P is a replica.Transport backed by a libp2p host: each endpoint is
// resolved to a multiaddr/peer.ID pair, and messages are framed as a single
// JSON-encoded wireEnvelope per stream, mirroring the gossip protocol's
// handleStream/sendMessage shape.
type LibP2P struct {
	host        host.Host
	latticeType string
	inbox       replica.Inbox
	logger      *zap.Logger

	mu    sync.RWMutex
	peers map[replica.Endpoint]peer.ID
}

// NewLibP2P starts a libp2p host listening on listenAddr and registers the
// anti-entropy stream handler, dispatching inbound messages to inbox.
func NewLibP2P(listenAddr, latticeType string, inbox replica.Inbox, logger *zap.Logger) (*LibP2P, error) {
	h, err := golibp2p.New(golibp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		return nil, fmt.Errorf("transport: failed to create libp2p host: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &LibP2P{
		host:        h,
		latticeType: latticeType,
		inbox:       inbox,
		logger:      logger.Named("transport.libp2p"),
		peers:       make(map[replica.Endpoint]peer.ID),
	}
	h.SetStreamHandler(streamProtocol, t.handleStream)
	return t, nil
}

// AddPeer connects to and registers a neighbour at its libp2p multiaddr,
// addressed afterward by endpoint (the same name passed to
// replica.AddNeighbour).
func (t *LibP2P) AddPeer(ctx context.Context, endpoint replica.Endpoint, multiaddrStr string) error {
	addr, err := multiaddr.NewMultiaddr(multiaddrStr)
	if err != nil {
		return fmt.Errorf("transport: invalid peer address: %w", err)
	}
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return fmt.Errorf("transport: failed to parse peer info: %w", err)
	}
	if err := t.host.Connect(ctx, *info); err != nil {
		return fmt.Errorf("transport: failed to connect to peer: %w", err)
	}

	t.mu.Lock()
	t.peers[endpoint] = info.ID
	t.mu.Unlock()
	return nil
}

// Close shuts down the underlying libp2p host.
func (t *LibP2P) Close() error {
	return t.host.Close()
}

// SendDelta implements replica.Transport.
func (t *LibP2P) SendDelta(ctx context.Context, to replica.Endpoint, msg replica.DeltaMessage) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("transport: failed to marshal delta payload: %w", err)
	}
	env := wireEnvelope{
		Kind:           "delta",
		Origin:         string(msg.Origin),
		SequenceNumber: uint64(msg.SequenceNumber),
		LatticeType:    t.latticeType,
		Payload:        payload,
	}
	return t.send(ctx, to, env)
}

// SendAck implements replica.Transport.
func (t *LibP2P) SendAck(ctx context.Context, to replica.Endpoint, msg replica.AckMessage) error {
	env := wireEnvelope{
		Kind:           "ack",
		From:           string(msg.From),
		SequenceNumber: uint64(msg.SequenceNumber),
	}
	return t.send(ctx, to, env)
}

func (t *LibP2P) send(ctx context.Context, to replica.Endpoint, env wireEnvelope) error {
	t.mu.RLock()
	pid, ok := t.peers[to]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: no known peer for endpoint %q", to)
	}

	s, err := t.host.NewStream(ctx, pid, streamProtocol)
	if err != nil {
		return fmt.Errorf("transport: failed to open stream to %q: %w", to, err)
	}
	defer s.Close()

	if err := json.NewEncoder(s).Encode(env); err != nil {
		return fmt.Errorf("transport: failed to send to %q: %w", to, err)
	}
	return nil
}

func (t *LibP2P) handleStream(s network.Stream) {
	defer s.Close()

	var env wireEnvelope
	if err := json.NewDecoder(s).Decode(&env); err != nil {
		t.logger.Debug("failed to decode incoming envelope", zap.Error(err))
		return
	}

	switch env.Kind {
	case "delta":
		value, err := crdt.New(env.LatticeType, 0)
		if err != nil {
			t.logger.Debug("unknown lattice type on wire", zap.String("type", env.LatticeType), zap.Error(err))
			return
		}
		unmarshaler, ok := value.(interface{ UnmarshalJSON([]byte) error })
		if !ok {
			t.logger.Debug("lattice type has no wire format", zap.String("type", env.LatticeType))
			return
		}
		if err := unmarshaler.UnmarshalJSON(env.Payload); err != nil {
			t.logger.Debug("failed to decode delta payload", zap.Error(err))
			return
		}
		t.inbox.DeliverDelta(replica.Endpoint(env.Origin), replica.DeltaMessage{
			Origin:         replica.Endpoint(env.Origin),
			Payload:        value,
			SequenceNumber: replica.SeqNum(env.SequenceNumber),
		})
	case "ack":
		t.inbox.DeliverAck(replica.Endpoint(env.From), replica.AckMessage{
			From:           replica.Endpoint(env.From),
			SequenceNumber: replica.SeqNum(env.SequenceNumber),
		})
	default:
		t.logger.Debug("unknown envelope kind", zap.String("kind", env.Kind))
	}
}
