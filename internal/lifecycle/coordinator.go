package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Coordinator runs the graceful-shutdown sequence exactly once per process
// lifetime:
//
//  1. flip readiness to draining, so /ready starts failing,
//  2. stop accepting new connections,
//  3. wait for the in-flight counter to reach zero, bounded by the drain
//     timeout,
//  4. close the servers.
//
// Repeated Shutdown calls (a second termination signal) are no-ops and do
// not reset the drain deadline.
type Coordinator struct {
	readiness    *Readiness
	inflight     *InFlight
	drainTimeout time.Duration

	stopAccepting func() error
	closeServers  func(ctx context.Context) error

	once sync.Once
	err  error
}

// NewCoordinator wires the coordinator to its collaborators. stopAccepting
// must close the accept loop without touching established connections;
// closeServers may close whatever remains (idle keep-alive connections,
// stragglers past the deadline).
func NewCoordinator(
	readiness *Readiness,
	inflight *InFlight,
	drainTimeout time.Duration,
	stopAccepting func() error,
	closeServers func(ctx context.Context) error,
) *Coordinator {
	return &Coordinator{
		readiness:     readiness,
		inflight:      inflight,
		drainTimeout:  drainTimeout,
		stopAccepting: stopAccepting,
		closeServers:  closeServers,
	}
}

// Shutdown executes the drain sequence. The first call runs it; all later
// calls return the first call's result without re-entering the sequence.
func (c *Coordinator) Shutdown() error {
	c.once.Do(func() {
		c.err = c.run()
	})
	return c.err
}

func (c *Coordinator) run() error {
	started := time.Now()
	log.Info("Shutdown requested", "inflight", c.inflight.Count(), "drainTimeout", c.drainTimeout)

	// Readiness must flip before the listener closes so the orchestrator's
	// next probe sees not-ready no later than the refused connection.
	c.readiness.BeginDraining()

	var firstErr error
	if c.stopAccepting != nil {
		if err := c.stopAccepting(); err != nil {
			log.Error("Failed to stop accepting connections", "err", err)
			firstErr = err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.drainTimeout)
	defer cancel()

	if err := c.inflight.Wait(ctx); err != nil {
		// Operational event, not a client-visible error: the timeout is the
		// only safety net against a stuck handler.
		log.Warn("Drain timeout elapsed, forcing exit",
			"inflight", c.inflight.Count(),
			"elapsed", time.Since(started),
		)
	} else {
		log.Info("Drain complete", "elapsed", time.Since(started))
	}

	if c.closeServers != nil {
		if err := c.closeServers(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
