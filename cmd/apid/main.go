// Command apid runs the HTTP front-end: build-proof,
// submit, checkpoint/borrower operator actions, and the dual-signature
// claim protocol. It does not run the relayer loop; see cmd/relayerd.
package main

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashcredit/spvbridge/cmd/internal/bootstrap"
	"github.com/hashcredit/spvbridge/pkg/server"
)

func main() {
	logger := log.New(os.Stderr, "[apid] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, logger)
	if err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}
	if closer, ok := deps.Store.(io.Closer); ok {
		defer closer.Close()
	}

	srv, err := server.New(server.Config{
		Adapter:  deps.Adapter,
		Store:    deps.Store,
		EVM:      deps.EVM,
		Issuer:   deps.Issuer,
		APIKey:   deps.Config.APIKey,
		Loopback: isLoopbackAddr(deps.Config.ListenAddr),
		Logger:   logger,
	})
	if err != nil {
		logger.Fatalf("server: %v", err)
	}

	httpSrv := &http.Server{
		Addr:    deps.Config.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("apid listening on %s", deps.Config.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" {
		// ":8080" binds every interface.
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
