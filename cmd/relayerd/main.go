// Command relayerd runs the relayer control loop: scan,
// confirm, select checkpoint, build, verify, and submit SPV proofs for
// watched borrower addresses, exposing its Prometheus metrics on
// METRICS_ADDR.
package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hashcredit/spvbridge/cmd/internal/bootstrap"
	"github.com/hashcredit/spvbridge/pkg/relayer"
)

func main() {
	logger := log.New(os.Stderr, "[relayerd] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, logger)
	if err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}
	if closer, ok := deps.Store.(io.Closer); ok {
		defer closer.Close()
	}

	lastScanned, err := relayer.RecoverLastScannedHeight(ctx, deps.Adapter, deps.Config.ScanBatchSize)
	if err != nil {
		logger.Fatalf("recover last scanned height: %v", err)
	}

	metrics := relayer.NewMetrics()
	loop := relayer.New(deps.Adapter, deps.Watcher, deps.Store, deps.EVM, relayer.Config{
		ScanBatchSize:    deps.Config.ScanBatchSize,
		PollInterval:     deps.Config.PollInterval,
		MinConfirmations: deps.Config.MinConfirmations,
		MaxHeaderChain:   deps.Config.MaxHeaderChain,
	}, lastScanned, logger).WithMetrics(metrics)

	metricsSrv := &http.Server{
		Addr:    deps.Config.MetricsAddr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server: %v", err)
		}
	}()

	logger.Printf("relayer loop starting at last_scanned_height=%d", lastScanned)
	loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Printf("relayer loop stopped at last_scanned_height=%d", loop.LastScannedHeight())
}
