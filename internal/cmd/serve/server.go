package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/pan1c/payload-analyzer/internal/config"
	"github.com/pan1c/payload-analyzer/internal/lifecycle"
	"github.com/pan1c/payload-analyzer/internal/observe"
	routesystem "github.com/pan1c/payload-analyzer/internal/plugin/route/system"
	registryroute "github.com/pan1c/payload-analyzer/internal/registry/route"
)

// managementPaths are the probe and scrape endpoints; they skip the access
// log and the concurrency limit.
var managementPaths = []string{"/health", "/ready", "/metrics"}

// Server holds the running server and its subsystems.
type Server struct {
	Config   *config.Config
	Router   *gin.Engine
	InFlight *lifecycle.InFlight
	Running  *RunningServer

	coordinator *lifecycle.Coordinator
}

// Shutdown runs the graceful-shutdown sequence: flip readiness, stop
// accepting, drain in-flight requests bounded by the configured timeout,
// close the servers. One-shot; repeated calls are no-ops.
func (s *Server) Shutdown() error {
	return s.coordinator.Shutdown()
}

// StartServer initializes all subsystems and starts the HTTP listener(s).
// Use cfg.Listener.Port=0 for a random port. Actual port: Server.Running.Port.
// Readiness is marked only after the listeners are live; any failure here is
// fatal before the service ever reports ready.
func StartServer(cfg *config.Config) (*Server, error) {
	log.Info("Starting payload analyzer",
		"httpPort", cfg.Listener.Port,
		"drainTimeout", cfg.DrainTimeout,
		"maxConcurrency", cfg.MaxConcurrency,
	)

	// Initialize Prometheus metrics with configured constant labels.
	metricsLabels, err := observe.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	inflight := lifecycle.NewInFlight()
	observe.InitMetrics(metricsLabels, inflight)

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	gin.EnableJsonDecoderDisallowUnknownFields()
	router := gin.New()
	// Metrics sit outside Recovery so a recovered panic is recorded as a
	// server error, and the in-flight decrement survives any handler outcome.
	router.Use(observe.MetricsMiddleware(inflight))
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(observe.AccessLogMiddleware())
	} else {
		router.Use(observe.AccessLogMiddleware(managementPaths...))
	}
	router.Use(concurrencyLimitMiddleware(cfg.MaxConcurrency, managementPaths...))
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	// Mount main route plugins on the main router.
	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	// Mount management route plugins. If a dedicated management port is
	// configured, run them on a bare gin engine served by the management
	// server. Otherwise mount them on the main router.
	var closeManagement func(context.Context) error
	if cfg.ManagementListenerEnabled {
		mgmtRouter := gin.New()
		mgmtRouter.Use(gin.Recovery())
		if cfg.ManagementAccessLog {
			mgmtRouter.Use(observe.AccessLogMiddleware())
		}
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(mgmtRouter); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
		// Management listener shares TLS cert/key with the main listener.
		mgmtCfg := cfg.ManagementListener
		mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
		mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
		_, closeManagement, err = startManagementServer(mgmtCfg, mgmtRouter)
		if err != nil {
			return nil, fmt.Errorf("failed to start management server: %w", err)
		}
	} else {
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(router); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
	}

	running, err := StartHTTPListener(cfg.Listener, router)
	if err != nil {
		return nil, err
	}

	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
	)

	// The management listener keeps answering probes throughout the drain so
	// the orchestrator can observe the not-ready transition; it closes with
	// everything else once draining finishes.
	closeServers := func(ctx context.Context) error {
		err := running.Close(ctx)
		if closeManagement != nil {
			if mErr := closeManagement(ctx); mErr != nil && err == nil {
				err = mErr
			}
		}
		return err
	}
	coordinator := lifecycle.NewCoordinator(
		routesystem.Readiness(),
		inflight,
		time.Duration(cfg.DrainTimeout)*time.Second,
		running.StopAccepting,
		closeServers,
	)

	routesystem.MarkReady()
	return &Server{
		Config:      cfg,
		Router:      router,
		InFlight:    inflight,
		Running:     running,
		coordinator: coordinator,
	}, nil
}
