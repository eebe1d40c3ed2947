package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/pan1c/payload-analyzer/internal/config"
)

// startManagementServer starts a dedicated server for the management
// endpoints (health, readiness, metrics). It reuses config.ListenerConfig
// for plain-text/TLS options. Returns the bound address and a shutdown
// function. This listener is not subject to the drain sequence's
// stop-accepting step: probes must keep answering while the service drains.
func startManagementServer(cfg config.ListenerConfig, handler http.Handler) (net.Addr, func(context.Context) error, error) {
	if !cfg.EnablePlainText && !cfg.EnableTLS {
		cfg.EnablePlainText = true
	}

	running, err := StartHTTPListener(cfg, handler)
	if err != nil {
		return nil, nil, fmt.Errorf("management listen failed: %w", err)
	}

	log.Info("Management server listening", "addr", running.Addr)
	return running.Addr, running.Close, nil
}
