package replica

import "fmt"

// ConfigMissing is returned when a replica is started without a required
// configuration field (spec §7).
type ConfigMissing struct {
	Field string
}

func (e *ConfigMissing) Error() string {
	return fmt.Sprintf("replica: missing required configuration field %q", e.Field)
}

// InadmissibleDelta marks an inbound delta interval rejected by the
// admissibility filter (spec §4.4, §7). It is never returned to a caller —
// handling is a silent drop — and is used internally for logging.
type InadmissibleDelta struct {
	Origin Endpoint
}

func (e *InadmissibleDelta) Error() string {
	return fmt.Sprintf("replica: inadmissible delta interval from %q", e.Origin)
}

// UnreachableNotify marks a configured notify endpoint that is not
// currently registered as a neighbour (spec §7). The notification is
// dropped silently; this type exists for logging.
type UnreachableNotify struct {
	Endpoint Endpoint
}

func (e *UnreachableNotify) Error() string {
	return fmt.Sprintf("replica: notify target %q is not reachable", e.Endpoint)
}

// ErrUnknownMutator is returned by operation() when the named mutator is
// not registered on the replica's lattice type.
type ErrUnknownMutator struct {
	Name string
}

func (e *ErrUnknownMutator) Error() string {
	return fmt.Sprintf("replica: unknown mutator %q", e.Name)
}

// ErrStopped is returned by request methods invoked after the replica has
// been stopped.
var ErrStopped = fmt.Errorf("replica: stopped")
