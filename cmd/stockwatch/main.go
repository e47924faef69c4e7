package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/config"
	kafkax "github.com/ariefcatur/go-checkout/internal/kafka"
	"github.com/ariefcatur/go-checkout/internal/observability"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/redisx"
	"github.com/ariefcatur/go-checkout/internal/stockwatch"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	service := cfg.ServiceName + "-stockwatch"
	log, err := observability.NewLogger(service, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, service, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("tracing", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &stockwatch.Service{
		Board:       &redisx.StockBoard{RDB: rdb},
		Redis:       rdb,
		ServiceName: service,
		Log:         log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StockwatchGrp, orders.TopicInventoryStock, cfg.StockwatchN, log)
	log.Info("stockwatch consumer started",
		zap.String("group", cfg.StockwatchGrp),
		zap.String("topic", orders.TopicInventoryStock),
		zap.Int("workers", cfg.StockwatchN))
	if err := cons.Start(ctx, svc.HandleStockEvent); err != nil && ctx.Err() == nil {
		log.Error("consumer exit", zap.Error(err))
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := shutdownTracing(sctx); err != nil {
		log.Warn("tracer shutdown", zap.Error(err))
	}
}
