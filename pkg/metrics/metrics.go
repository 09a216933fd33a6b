package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/postroom/postroom/pkg/env"
	"github.com/postroom/postroom/postcache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options wires the operator endpoints to the running daemon. Nil fields turn
// the matching check off.
type Options struct {
	// Gatherer defaults to prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
	// Ping backs /ping; a failing ping answers 503
	Ping func(ctx context.Context) error
	// CacheStats backs /cache
	CacheStats func() postcache.Stats
}

// NewMux builds the operator mux: /metrics, /debug/pprof/, /version, /ping
// and /cache.
func NewMux(opts Options) *http.ServeMux {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/version", env.VersionHandler)

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Ping(ctx); err != nil {
				slog.Warn("readiness ping failed", "err", err)
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = fmt.Fprintf(w, "OK")
	})

	mux.HandleFunc("/cache", func(w http.ResponseWriter, r *http.Request) {
		if opts.CacheStats == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(opts.CacheStats()) // nolint:errcheck
	})

	return mux
}

// RunServer serves NewMux(opts) on addr until ctx is done. An empty addr
// disables the listener. cancel is called on return so a failing metrics
// listener takes the process down with it.
func RunServer(ctx context.Context, cancel context.CancelFunc, addr string, opts Options) error {
	if addr == "" {
		slog.Info("metrics server disabled")
		return nil
	}

	defer cancel()

	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(opts),
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down metrics server", "err", err)
		}
	}()

	slog.Info("metrics server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
