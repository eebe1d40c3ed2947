// Package system serves the management endpoints: liveness, readiness, and
// the Prometheus scrape target. It owns the process-wide readiness state.
package system

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pan1c/payload-analyzer/internal/lifecycle"
	registryroute "github.com/pan1c/payload-analyzer/internal/registry/route"
)

var readiness = lifecycle.NewReadiness()

// Readiness returns the process-wide readiness state, shared with the
// shutdown coordinator.
func Readiness() *lifecycle.Readiness {
	return readiness
}

// MarkReady signals that the service has finished initializing and is ready
// to serve traffic. Call this once StartServer has completed successfully.
func MarkReady() {
	readiness.MarkReady()
}

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 0,
		Type:  registryroute.RouteTypeManagement,
		Loader: func(r *gin.Engine) error {
			// Liveness: the process is up. Deliberately independent of
			// readiness, so the orchestrator never kills a pod that is
			// correctly draining.
			r.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			// Readiness: only READY admits traffic. STARTING and DRAINING
			// both answer 503, with the state in the body for operators.
			r.GET("/ready", func(c *gin.Context) {
				state := readiness.State()
				if state == lifecycle.StateReady {
					c.JSON(http.StatusOK, gin.H{"status": "ready"})
				} else {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": state.String()})
				}
			})

			// Prometheus metrics
			r.GET("/metrics", gin.WrapH(promhttp.Handler()))

			return nil
		},
	})
}
