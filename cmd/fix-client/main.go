package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ismaiel54/fix-trading-engine/internal/config"
	"github.com/ismaiel54/fix-trading-engine/internal/engine"
	"github.com/ismaiel54/fix-trading-engine/internal/fix"
	"github.com/ismaiel54/fix-trading-engine/internal/logging"
	"github.com/ismaiel54/fix-trading-engine/internal/order"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := config.LoadConfig("fix-client")

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting fix-client",
		zap.String("addr", cfg.FIXDialAddr()),
		zap.String("sender_comp_id", cfg.SenderCompID),
		zap.String("target_comp_id", cfg.TargetCompID),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := engine.NewClient(cfg, nil, logger)
	if err := client.Connect(ctx); err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	if err := client.WaitForLogon(10 * time.Second); err != nil {
		logger.Fatal("logon failed", zap.Error(err))
	}

	// Optional scripted order from the environment. The interactive
	// order-entry front end lives outside this binary; it drives the
	// same Client operations.
	if clOrdID := os.Getenv("ORDER_CLORDID"); clOrdID != "" {
		symbol := os.Getenv("ORDER_SYMBOL")
		side := fix.SideBuy
		if os.Getenv("ORDER_SIDE") == "SELL" {
			side = fix.SideSell
		}
		qty, err := decimal.NewFromString(os.Getenv("ORDER_QTY"))
		if err != nil {
			logger.Fatal("invalid ORDER_QTY", zap.Error(err))
		}
		price, err := decimal.NewFromString(os.Getenv("ORDER_PRICE"))
		if err != nil {
			logger.Fatal("invalid ORDER_PRICE", zap.Error(err))
		}

		done := make(chan struct{})
		client.OnExecutionReport(func(snap order.Snapshot, _ *fix.Message) {
			if snap.Status == order.StatusFilled || snap.Status == order.StatusCanceled || snap.Status == order.StatusRejected {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		})

		if err := client.SendNewOrderSingle(clOrdID, symbol, side, fix.OrdTypeLimit, qty, price); err != nil {
			logger.Fatal("failed to send order", zap.Error(err))
		}

		select {
		case <-done:
			logger.Info("order reached a terminal state")
		case <-time.After(30 * time.Second):
			logger.Warn("timed out waiting for a terminal execution report")
		}
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if os.Getenv("ORDER_CLORDID") == "" {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	if err := client.Logout(); err != nil {
		logger.Error("logout failed", zap.Error(err))
	}
	logger.Info("fix-client stopped")
}
