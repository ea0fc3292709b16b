package replica

import (
	"context"
	"errors"
	"time"

	"github.com/rechain/delta-crdt/pkg/crdt"
	"go.uber.org/zap"
)

// ShipAfterXDeltas (SHIP_AFTER_X_DELTAS) bounds the unshipped backlog: once
// sequence_number is more than this far beyond shipped_sequence_number, the next {ship, s}
// force-ships regardless of quiescence (spec §5 backpressure).
const ShipAfterXDeltas = 1000

// NotifyTarget is the optional (endpoint, message) pair signaled after a
// successful outbound ship (spec §3 "notify").
type NotifyTarget struct {
	Endpoint Endpoint
	Message  string
}

// Notifier receives a best-effort signal after a successful ship. A nil
// Notifier is valid and simply means no notification is configured.
type Notifier interface {
	Notify(target NotifyTarget)
}

// Config configures a new Replica. Name and Lattice are mandatory; a
// missing value fails New with ConfigMissing (spec §7).
type Config struct {
	Name         string
	Lattice      string
	NodeID       uint64
	ShipDebounce time.Duration
	Notify       *NotifyTarget
	Transport    Transport
	Notifier     Notifier
	Audit        AuditSink
	Logger       *zap.Logger
}

// Replica is a single-threaded anti-entropy actor realizing spec §4.1. All
// mutable state below is owned exclusively by the goroutine started in
// New; every other method communicates with it over inbox.
type Replica struct {
	name    string
	nodeID  uint64
	latType string

	transport Transport
	notifier  Notifier
	notify    *NotifyTarget
	audit     AuditSink
	logger    *zap.Logger

	shipDebounce time.Duration

	inbox chan interface{}
	done  chan struct{}

	// actor-owned state (spec §3)
	state      crdt.Mutable
	seq        SeqNum
	shippedSeq SeqNum
	buf        *deltaBuffer
	neighbours map[Endpoint]struct{}
	acks       *ackTracker
}

// New constructs and starts a Replica. The config's Lattice name must be
// registered in package crdt.
func New(cfg Config) (*Replica, error) {
	if cfg.Name == "" {
		return nil, &ConfigMissing{Field: "name"}
	}
	if cfg.Lattice == "" {
		return nil, &ConfigMissing{Field: "crdt"}
	}

	empty, err := crdt.New(cfg.Lattice, cfg.NodeID)
	if err != nil {
		return nil, err
	}
	mutable, ok := empty.(crdt.Mutable)
	if !ok {
		return nil, &ConfigMissing{Field: "crdt (not Mutable)"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Replica{
		name:         cfg.Name,
		nodeID:       cfg.NodeID,
		latType:      cfg.Lattice,
		transport:    cfg.Transport,
		notifier:     cfg.Notifier,
		notify:       cfg.Notify,
		audit:        cfg.Audit,
		logger:       logger.Named("replica").With(zap.String("replica", cfg.Name)),
		shipDebounce: cfg.ShipDebounce,
		inbox:        make(chan interface{}, 256),
		done:         make(chan struct{}),
		state:        mutable,
		buf:          newDeltaBuffer(),
		neighbours:   make(map[Endpoint]struct{}),
		acks:         newAckTracker(),
	}
	go r.run()
	return r, nil
}

// Status reports actor-introspection counters (spec §4.9): it never exposes
// crdt_state's value, only the bookkeeping the Data Model's invariants
// already imply.
type Status struct {
	NodeID                uint64
	SequenceNumber        SeqNum
	ShippedSequenceNumber SeqNum
	NeighbourCount        int
	BufferSize            int
	AckMap                map[Endpoint]SeqNum
}

// Status returns a snapshot of the replica's actor-level counters.
func (r *Replica) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	req := statusRequest{reply: reply}
	if err := r.send(ctx, req); err != nil {
		return Status{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-r.done:
		return Status{}, ErrStopped
	}
}

// Read returns the current crdt_state's user-visible projection.
func (r *Replica) Read(ctx context.Context) (interface{}, error) {
	return r.ReadWith(ctx, func(s crdt.Lattice) interface{} { return s.Value() })
}

// ReadWith returns project applied to the current crdt_state.
func (r *Replica) ReadWith(ctx context.Context, project func(crdt.Lattice) interface{}) (interface{}, error) {
	reply := make(chan interface{}, 1)
	req := readRequest{project: project, reply: reply}
	if err := r.send(ctx, req); err != nil {
		return nil, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrStopped
	}
}

// Operation applies a locally-originated mutation named mutator with args,
// per spec §4.1. It returns once the operation has been applied to
// crdt_state; it never blocks on shipping.
func (r *Replica) Operation(ctx context.Context, mutator string, args ...interface{}) error {
	reply := make(chan error, 1)
	req := opRequest{mutator: mutator, args: args, reply: reply}
	if err := r.send(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// AddNeighbour unions endpoint into neighbours. Idempotent.
func (r *Replica) AddNeighbour(ctx context.Context, endpoint Endpoint) error {
	return r.AddNeighbours(ctx, []Endpoint{endpoint})
}

// AddNeighbours unions endpoints into neighbours. Idempotent.
func (r *Replica) AddNeighbours(ctx context.Context, endpoints []Endpoint) error {
	reqDone := make(chan struct{})
	req := addNeighboursRequest{endpoints: endpoints, done: reqDone}
	if err := r.send(ctx, req); err != nil {
		return err
	}
	select {
	case <-reqDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// DeliverDelta implements Inbox: called by a Transport when a DeltaMessage
// arrives from from.
func (r *Replica) DeliverDelta(from Endpoint, msg DeltaMessage) {
	select {
	case r.inbox <- inboundDelta{msg: msg}:
	case <-r.done:
	}
}

// DeliverAck implements Inbox: called by a Transport when an AckMessage
// arrives from from.
func (r *Replica) DeliverAck(from Endpoint, msg AckMessage) {
	select {
	case r.inbox <- inboundAck{msg: msg}:
	case <-r.done:
	}
}

// Stop performs a final best-effort ship to all neighbours, then halts the
// actor (spec §4.1 Termination).
func (r *Replica) Stop(ctx context.Context) error {
	reqDone := make(chan struct{})
	req := stopRequest{done: reqDone}
	select {
	case r.inbox <- req:
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reqDone:
		return nil
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerTryShip posts a try_ship tick, as the periodic driver would. It
// exists so tests and the replicatest harness can drive shipping
// deterministically instead of waiting on a real timer.
func (r *Replica) TriggerTryShip() {
	r.postTryShip()
}

// TriggerGC posts a garbage_collect tick, as the periodic driver would.
func (r *Replica) TriggerGC() {
	r.postGcTick()
}

func (r *Replica) postTryShip() {
	select {
	case r.inbox <- tryShipTick{}:
	case <-r.done:
	}
}

func (r *Replica) postGcTick() {
	select {
	case r.inbox <- gcTick{}:
	case <-r.done:
	}
}

func (r *Replica) send(ctx context.Context, msg interface{}) error {
	select {
	case r.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// run is the single goroutine that owns every field below inbox: exactly
// one message is processed at a time, to completion (spec §5).
func (r *Replica) run() {
	defer close(r.done)
	for msg := range r.inbox {
		switch m := msg.(type) {
		case readRequest:
			m.reply <- m.project(r.state)

		case opRequest:
			m.reply <- r.handleOperation(m.mutator, m.args)

		case statusRequest:
			m.reply <- r.snapshotStatus()

		case addNeighboursRequest:
			for _, e := range m.endpoints {
				r.neighbours[e] = struct{}{}
			}
			close(m.done)

		case inboundDelta:
			r.handleInboundDelta(m.msg)

		case inboundAck:
			r.acks.observe(m.msg.From, m.msg.SequenceNumber)

		case tryShipTick:
			r.handleTryShip()

		case shipSnapshot:
			r.handleShipSnapshot(m.s)

		case gcTick:
			r.handleGcTick()

		case stopRequest:
			r.shipToAll(context.Background())
			close(m.done)
			return
		}
	}
}

func (r *Replica) snapshotStatus() Status {
	ackMap := make(map[Endpoint]SeqNum, len(r.neighbours))
	for n := range r.neighbours {
		ackMap[n] = r.acks.get(n)
	}
	return Status{
		NodeID:                r.nodeID,
		SequenceNumber:        r.seq,
		ShippedSequenceNumber: r.shippedSeq,
		NeighbourCount:        len(r.neighbours),
		BufferSize:            r.buf.len(),
		AckMap:                ackMap,
	}
}

func (r *Replica) handleOperation(mutator string, args []interface{}) error {
	delta, err := r.state.Mutate(mutator, r.nodeID, args...)
	if err != nil {
		if errors.Is(err, crdt.ErrUnknownMutator) {
			return &ErrUnknownMutator{Name: mutator}
		}
		return err
	}
	r.state = r.state.Join(delta).Compress().(crdt.Mutable)
	r.buf.insert(r.seq, selfOrigin, delta)
	r.seq++
	return nil
}

func (r *Replica) handleInboundDelta(msg DeltaMessage) {
	lastKnown := r.state.CausalContext().Maxima()
	if !admissible(lastKnown, msg.Payload) {
		r.logger.Debug("dropping inadmissible delta", zap.Error(&InadmissibleDelta{Origin: msg.Origin}))
		r.recordAudit("reject", msg.Origin, "causal gap in delta interval")
		return
	}
	r.recordAudit("accept", msg.Origin, "")

	r.state = r.state.Join(msg.Payload).Compress().(crdt.Mutable)
	r.buf.insert(r.seq, msg.Origin, msg.Payload)
	r.seq++

	ack := AckMessage{From: Endpoint(r.name), SequenceNumber: msg.SequenceNumber}
	if r.transport != nil {
		go func(origin Endpoint) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.transport.SendAck(ctx, origin, ack)
		}(msg.Origin)
	}
}

func (r *Replica) handleTryShip() {
	if r.shippedSeq == r.seq {
		return
	}
	snapshot := r.seq
	if r.shipDebounce <= 0 {
		r.handleShipSnapshot(snapshot)
		return
	}
	time.AfterFunc(r.shipDebounce, func() {
		select {
		case r.inbox <- shipSnapshot{s: snapshot}:
		case <-r.done:
		}
	})
}

func (r *Replica) handleShipSnapshot(s SeqNum) {
	forceShip := s > r.shippedSeq+ShipAfterXDeltas
	quiesced := s == r.seq
	if !forceShip && !quiesced {
		return
	}
	r.shipToAll(context.Background())
	r.shippedSeq = s
	r.doNotify()
}

func (r *Replica) shipToAll(ctx context.Context) {
	if r.transport == nil {
		return
	}
	for n := range r.neighbours {
		decision := decideShip(r.buf, r.state, r.seq, n, r.acks.get(n))
		if decision.skip {
			continue
		}
		msg := DeltaMessage{
			Origin:         Endpoint(r.name),
			Payload:        decision.payload,
			SequenceNumber: r.seq,
		}
		if err := r.transport.SendDelta(ctx, n, msg); err != nil {
			r.logger.Debug("ship failed, anti-entropy will retry", zap.String("to", string(n)), zap.Error(err))
			r.recordAudit("ship_failed", n, err.Error())
			continue
		}
		r.recordAudit("ship", n, "")
	}
}

// recordAudit fires off a diagnostic record without blocking the actor
// goroutine: audit writes are never on the critical path (spec §1
// non-goal: durable persistence).
func (r *Replica) recordAudit(kind string, neighbor Endpoint, detail string) {
	if r.audit == nil {
		return
	}
	go r.audit.RecordEvent(context.Background(), kind, string(neighbor), detail)
}

func (r *Replica) handleGcTick() {
	if len(r.neighbours) == 0 {
		return
	}
	endpoints := make([]Endpoint, 0, len(r.neighbours))
	for n := range r.neighbours {
		endpoints = append(endpoints, n)
	}
	l, _ := r.acks.minAcrossKnown(endpoints)
	r.buf.pruneBelow(l)
}

func (r *Replica) doNotify() {
	if r.notify == nil || r.notifier == nil {
		return
	}
	if _, ok := r.neighbours[r.notify.Endpoint]; !ok {
		r.logger.Debug("notify target unreachable", zap.Error(&UnreachableNotify{Endpoint: r.notify.Endpoint}))
		return
	}
	r.notifier.Notify(*r.notify)
}
