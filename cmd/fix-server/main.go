package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/ismaiel54/fix-trading-engine/internal/config"
	"github.com/ismaiel54/fix-trading-engine/internal/dropcopy"
	"github.com/ismaiel54/fix-trading-engine/internal/engine"
	"github.com/ismaiel54/fix-trading-engine/internal/logging"
	"github.com/ismaiel54/fix-trading-engine/internal/observability"
	"github.com/ismaiel54/fix-trading-engine/internal/sim"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := config.LoadConfig("fix-server")
	simCfg := sim.LoadConfig()

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting fix-server",
		zap.Int("fix_port", cfg.FIXPort),
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("begin_string", cfg.BeginString),
		zap.String("sender_comp_id", cfg.SenderCompID),
		zap.Duration("heartbeat_interval", cfg.HeartbeatInterval),
	)

	// Metrics registry
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Optional drop-copy publisher
	var publisher *dropcopy.Publisher
	if cfg.DropCopyBrokers != "" {
		brokers := strings.Split(cfg.DropCopyBrokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		publisher, err = dropcopy.NewPublisher(brokers, cfg.DropCopyTopic, logger)
		if err != nil {
			logger.Fatal("failed to create drop-copy publisher", zap.Error(err))
		}
		defer publisher.Close()
	}

	// Create health checker and gRPC server
	healthChecker := observability.NewHealthChecker(logger)
	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			grpcErrCh <- err
		}
	}()

	// Start HTTP health/metrics server
	httpErrCh := make(chan error, 1)
	go func() {
		if err := healthChecker.StartHTTPServer(cfg.HTTPAddr(), registry); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()

	// Create and start the FIX acceptor
	server := engine.NewServer(cfg, sim.New(simCfg), publisher, metrics, logger)
	if err := server.Listen(); err != nil {
		logger.Fatal("failed to bind FIX listener", zap.Error(err))
	}
	healthChecker.SetListenerReady(true)

	serveCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErrCh := make(chan error, 1)
	go func() {
		if err := server.Serve(serveCtx); err != nil {
			serveErrCh <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-grpcErrCh:
		logger.Error("gRPC server error", zap.Error(err))
	case err := <-httpErrCh:
		logger.Error("HTTP server error", zap.Error(err))
	case err := <-serveErrCh:
		logger.Error("FIX server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()
	publisher.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("fix-server stopped")
}
