package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"dominicbreuker/netpump/pkg/config"
	"dominicbreuker/netpump/pkg/crypto"
	"dominicbreuker/netpump/pkg/log"
	"dominicbreuker/netpump/pkg/transport/ws"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Serve runs the echo server described by cfg until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Server) error {
	return serve(ctx, cfg, ws.ListenAndServeEcho)
}

func serve(ctx context.Context, cfg *config.Server, listen echoServer) error {
	opts := ws.EchoOptions{
		MaxConns:     cfg.MaxConns,
		MaxFrameSize: cfg.MaxFrameSize,
		Logger:       log.NewLogger(cfg.Verbose),
	}
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.Gatherer = reg
	}

	if cfg.TLS {
		tlsCfg, err := crypto.ServerConfig(cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("crypto.ServerConfig(): %w", err)
		}
		opts.TLSConfig = tlsCfg
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	if err := listen(ctx, addr, opts); err != nil {
		return fmt.Errorf("serving echo on %s: %w", addr, err)
	}
	return nil
}

// serveMetrics exposes g on addr under /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger *log.Logger) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logger.VerboseMsg("Serving metrics on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving metrics on %s: %w", addr, err)
	}
}
