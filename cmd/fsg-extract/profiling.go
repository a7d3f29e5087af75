package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime/trace"
	"time"
)

// profiling holds the optional pprof server and execution trace of one
// extraction run.
type profiling struct {
	server    *http.Server
	traceFile *os.File
	logger    *slog.Logger
}

// startProfiling serves pprof handlers on addr and records an execution trace
// to tracePath. Empty values disable the respective feature.
func startProfiling(addr, tracePath string, logger *slog.Logger) (*profiling, error) {
	p := &profiling{logger: logger}

	if addr != "" {
		mux := http.NewServeMux()
		// Register pprof handlers explicitly to avoid dependency on the default mux.
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("listen for pprof: %w", err)
		}
		p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("profiling server stopped", slog.Any("error", err))
			}
		}()
		logger.Info("profiling server started", slog.String("addr", ln.Addr().String()))
	}

	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			p.stop()
			return nil, fmt.Errorf("create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			p.stop()
			return nil, fmt.Errorf("start trace: %w", err)
		}
		p.traceFile = f
	}
	return p, nil
}

// stop shuts the server down and flushes the trace. Safe on a nil receiver.
func (p *profiling) stop() {
	if p == nil {
		return
	}
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.server.Shutdown(ctx); err != nil {
			p.logger.Warn("shutting down profiling server", slog.Any("error", err))
		}
		p.server = nil
	}
	if p.traceFile != nil {
		trace.Stop()
		p.traceFile.Close()
		p.traceFile = nil
	}
}
