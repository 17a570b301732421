package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ethereum/go-ethereum/metrics"
	gethprom "github.com/ethereum/go-ethereum/metrics/prometheus"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/status-im/nodemanager/common"
	"github.com/status-im/nodemanager/logutils"
)

// Server runs and controls a HTTP metrics interface.
type Server struct {
	server *http.Server
}

func NewMetricsServer(port int, r metrics.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler())
	mux.Handle("/metrics", Handler(r))
	p := Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			ReadHeaderTimeout: 5 * time.Second,
			Handler:           mux,
		},
	}
	return &p
}

func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("OK"))
		if err != nil {
			logutils.ZapLogger().Error("health handler error", zap.Error(err))
		}
	})
}

func Handler(reg metrics.Registry) http.Handler {
	// we disable compression because geth doesn't support it
	opts := promhttp.HandlerOpts{DisableCompression: true}
	// node manager collectors and the transport level geth metrics share one endpoint
	nodeMetrics := promhttp.HandlerFor(prom.DefaultGatherer, opts)
	if reg == nil {
		return nodeMetrics
	}
	gethMetrics := gethprom.Handler(reg)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nodeMetrics.ServeHTTP(w, r)
		gethMetrics.ServeHTTP(w, r)
	})
}

// Listen starts the HTTP server in the background.
func (p *Server) Listen() {
	defer common.LogOnPanic()
	err := p.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logutils.ZapLogger().Error("metrics server failed", zap.Error(err))
		return
	}
	logutils.ZapLogger().Info("metrics server stopped")
}

// Serve serves on an existing listener, used when the port is picked by the OS.
func (p *Server) Serve(l net.Listener) error {
	err := p.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (p *Server) Stop(ctx context.Context) error {
	return p.server.Shutdown(ctx)
}
