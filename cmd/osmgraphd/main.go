// Command osmgraphd serves the street-network toolkit's operations over
// HTTP: build, simplify, consolidate, truncate, route, and stats.
//
// The listener/goroutine-serve/signal-triggered graceful shutdown sequence
// is copied near-verbatim from the teacher's cmd/mapdata/mapdata.go and
// cmd/routegen/routegen.go, which share the exact same shape; this merges
// them into one binary serving every operation instead of one service
// apiece.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"

	"github.com/osmgraph/osmgraph/internal/config"
	"github.com/osmgraph/osmgraph/internal/service"
	"github.com/osmgraph/osmgraph/internal/service/endpoints"
	"github.com/osmgraph/osmgraph/internal/service/transport"
)

const defaultPort = "8082"

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	cfg := config.FromEnv()

	// 0.0.0.0 for a container, 127.0.0.1 for local runs.
	httpAddr := net.JoinHostPort("127.0.0.1", envString("PORT", defaultPort))

	var (
		svc         = service.New(cfg)
		epSet       = endpoints.NewEndpointSet(svc)
		httpHandler = transport.NewHTTPHandler(epSet)
	)

	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		logger.Log("transport", "HTTP", "during", "Listen", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{Handler: httpHandler}

	areaCeiling := "unbounded"
	if cfg.QueryAreaCeiling > 0 {
		areaCeiling = humanize.Comma(int64(cfg.QueryAreaCeiling)) + " m2"
	}
	logger.Log("msg", "starting osmgraphd", "overpass", cfg.OverpassURL, "query_area_ceiling", areaCeiling)

	go func() {
		logger.Log("transport", "HTTP", "addr", httpAddr)
		if err := httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
			logger.Log("transport", "HTTP", "during", "Serve", "err", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Log("signal", sig)

	if err := httpServer.Shutdown(context.Background()); err != nil {
		logger.Log("transport", "HTTP", "during", "Shutdown", "err", err)
	}
	httpListener.Close()

	logger.Log("transport", "HTTP", "status", "stopped")
}

func envString(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
