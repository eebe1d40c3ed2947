// Package lifecycle owns the service's traffic-admission state: the
// readiness state machine, the in-flight request counter, and the one-shot
// shutdown coordinator that drains in-flight work before process exit.
package lifecycle

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// State is the traffic-admission state of the process.
type State int32

const (
	// StateStarting is the initial state; the service is initializing and
	// not yet accepting traffic.
	StateStarting State = iota
	// StateReady means the service should receive new traffic.
	StateReady
	// StateDraining means shutdown has begun: new traffic is refused while
	// in-flight work runs to completion. Terminal.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Readiness is a write-once-per-transition state machine read concurrently
// by probe handlers. Reads never block.
type Readiness struct {
	state atomic.Int32
}

// NewReadiness returns a Readiness in StateStarting.
func NewReadiness() *Readiness {
	return &Readiness{}
}

// MarkReady transitions STARTING → READY. Call once after startup completes.
// Repeated calls, or calls after draining began, log an anomaly and no-op.
func (r *Readiness) MarkReady() {
	if !r.state.CompareAndSwap(int32(StateStarting), int32(StateReady)) {
		log.Warn("MarkReady called outside the starting state", "state", r.State())
	}
}

// BeginDraining transitions to DRAINING from any state. Idempotent and
// irreversible: once draining, the service never returns to ready.
func (r *Readiness) BeginDraining() {
	for {
		cur := r.state.Load()
		if cur == int32(StateDraining) {
			return
		}
		if r.state.CompareAndSwap(cur, int32(StateDraining)) {
			log.Info("Readiness flipped to draining")
			return
		}
	}
}

// IsReady reports whether the service should currently receive new traffic.
func (r *Readiness) IsReady() bool {
	return State(r.state.Load()) == StateReady
}

// State returns the current traffic-admission state.
func (r *Readiness) State() State {
	return State(r.state.Load())
}
