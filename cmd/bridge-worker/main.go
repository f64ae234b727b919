package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hypercore-one/bridge-monitor/internal/app"
	"github.com/hypercore-one/bridge-monitor/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logger := app.NewLogger()
	worker, err := app.NewWorker(cfg, logger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize worker: %v", err)
	}
	defer worker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("🛑 Shutting down")
		worker.Sync.Stop()
		cancel()
	}()

	logger.WithField("rpc_url", cfg.Bridge.RPCURL).Info("🌉 Bridge worker starting")
	if err := worker.Sync.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("bridge sync failed")
	}
}
