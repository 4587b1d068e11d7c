// Package statemanager maintains per-part per-step state, both persisted
// and ephemeral, and answers the dirty/outdated questions the Sequencer
// drives its decisions from.
package statemanager

import (
	"sync/atomic"
	"time"

	"github.com/mensylisir/craftkit/pkg/state"
)

// SerialGenerator hands out strictly increasing serials for ephemeral
// state wrappers. Serials must advance monotonically across the entire
// process lifetime, including across a state reload that discards
// ephemerals and rebuilds the manager — so one generator is shared
// across every Manager instance created in a process run.
type SerialGenerator struct {
	n atomic.Uint64
}

// NewSerialGenerator returns a fresh generator starting at 1.
func NewSerialGenerator() *SerialGenerator {
	return &SerialGenerator{}
}

// Next returns the next serial, strictly greater than any previously
// returned by this generator.
func (g *SerialGenerator) Next() uint64 {
	return g.n.Add(1)
}

// Wrapper pairs a PartState with the ordering metadata needed to answer
// "is A newer than B?" across a run. Exactly one of Timestamp
// (persisted) or Serial (ephemeral) is meaningful; which one is recorded
// in the Ephemeral flag.
type Wrapper struct {
	State     state.PartState
	Timestamp time.Time // valid only when !Ephemeral
	Serial    uint64    // valid only when Ephemeral
	Ephemeral bool
	Updated   bool
}

// NewPersistedWrapper wraps st with a filesystem timestamp, as loaded
// from a prior run's state file.
func NewPersistedWrapper(st state.PartState, timestamp time.Time) *Wrapper {
	return &Wrapper{State: st, Timestamp: timestamp, Ephemeral: false}
}

// NewEphemeralWrapper wraps st with the next serial from gen, marking it
// as work done this run.
func NewEphemeralWrapper(gen *SerialGenerator, st state.PartState, updated bool) *Wrapper {
	return &Wrapper{State: st, Serial: gen.Next(), Ephemeral: true, Updated: updated}
}

// IsNewerThan implements four ordering rules:
//  1. Both persisted -> compare timestamps.
//  2. Self persisted, other ephemeral -> other is newer (it ran this run).
//  3. Self ephemeral, other persisted -> self is newer.
//  4. Both ephemeral -> compare serials.
func (w *Wrapper) IsNewerThan(other *Wrapper) bool {
	switch {
	case !w.Ephemeral && !other.Ephemeral:
		return w.Timestamp.After(other.Timestamp)
	case !w.Ephemeral && other.Ephemeral:
		return false
	case w.Ephemeral && !other.Ephemeral:
		return true
	default:
		return w.Serial > other.Serial
	}
}
