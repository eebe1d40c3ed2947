package lifecycle

import (
	"context"
	"sync/atomic"
	"time"
)

// drainPollInterval bounds how stale the coordinator's view of the counter
// can be while waiting for drain completion.
const drainPollInterval = 10 * time.Millisecond

// InFlight counts requests that have been accepted but not yet answered.
// Begin and End must be paired per request; both are lock-free.
type InFlight struct {
	n atomic.Int64
}

// NewInFlight returns a zeroed counter.
func NewInFlight() *InFlight {
	return &InFlight{}
}

// Begin records that a request started processing.
func (f *InFlight) Begin() {
	f.n.Add(1)
}

// End records that a request finished, whether it succeeded or failed.
func (f *InFlight) End() {
	f.n.Add(-1)
}

// Count returns the current number of in-flight requests.
func (f *InFlight) Count() int64 {
	return f.n.Load()
}

// Wait blocks until the counter reaches zero or ctx expires, whichever
// comes first. It polls rather than locking so the request path never
// contends with the drain wait.
func (f *InFlight) Wait(ctx context.Context) error {
	if f.Count() == 0 {
		return nil
	}
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if f.Count() == 0 {
				return nil
			}
		}
	}
}
