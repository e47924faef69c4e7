package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/checkout"
	"github.com/ariefcatur/go-checkout/internal/config"
	"github.com/ariefcatur/go-checkout/internal/httpx"
	"github.com/ariefcatur/go-checkout/internal/invoice"
	kafkax "github.com/ariefcatur/go-checkout/internal/kafka"
	"github.com/ariefcatur/go-checkout/internal/memstore"
	"github.com/ariefcatur/go-checkout/internal/notify"
	"github.com/ariefcatur/go-checkout/internal/observability"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/postgres"
	"github.com/ariefcatur/go-checkout/internal/rabbitmq"
	"github.com/ariefcatur/go-checkout/internal/redisx"
	"github.com/ariefcatur/go-checkout/internal/worker"
)

// storage is what the API needs from either backing store.
type storage interface {
	checkout.Store
	checkout.Catalog
	checkout.InventoryWriter
	httpx.OrderReader
	httpx.InventoryLister
}

type eventBus interface {
	checkout.Publisher
	Close(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := observability.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		return err
	}

	// Store
	var store storage
	switch cfg.Store {
	case "memory":
		mem := memstore.New()
		seedDemo(mem)
		store = mem
		log.Warn("using in-memory store; data is lost on exit")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		store = &orders.Repo{DB: db}
	}

	// Redis (opsional: idempotency, status cache, low-stock board)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, continuing without it", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			rdb = nil
		}
	}

	// Event bus
	var bus eventBus
	switch cfg.EventBus {
	case "kafka":
		bus = kafkax.NewBus(cfg.KafkaBrokers,
			[]string{orders.TopicOrderPlaced, orders.TopicOrderStatus, orders.TopicInventoryStock}, 1024, log)
	case "rabbitmq":
		p, err := rabbitmq.Dial(ctx, rabbitmq.Config{URL: cfg.RabbitURL, Exchange: cfg.RabbitExch}, log)
		if err != nil {
			return err
		}
		bus = p
	}

	// Notifications
	if err := os.MkdirAll(filepath.Dir(cfg.SpoolPath), 0o755); err != nil {
		return err
	}
	spool, err := notify.OpenSpool(cfg.SpoolPath)
	if err != nil {
		return err
	}
	defer spool.Close()
	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		ImplicitTLS: cfg.SMTP.ImplicitTLS,
		Timeout:     cfg.SMTP.Timeout,
	})
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(sender, spool, log.Named("notify"), notify.Config{
		ShopName:     cfg.ShopName,
		SupportEmail: cfg.SupportEmail,
		AlertTo:      cfg.AlertEmail,
		Attempts:     cfg.SendAttempts,
		MaxAttempts:  cfg.MaxSpoolAttempts,
	})

	renderer := &invoice.Renderer{ShopName: cfg.ShopName, SupportEmail: cfg.SupportEmail}
	if cfg.LogoPath != "" {
		logo, err := os.ReadFile(cfg.LogoPath)
		if err != nil {
			log.Warn("invoice logo not loaded", zap.String("path", cfg.LogoPath), zap.Error(err))
		}
		renderer.Logo = logo
	}

	pool := worker.NewPool(cfg.NotifyWorkers, cfg.NotifyQueue, log.Named("worker"))

	coord := &checkout.Coordinator{
		Store:     store,
		Catalog:   store,
		Inventory: store,
		Invoices:  renderer,
		Notifier:  dispatcher,
		Runner:    pool,
		Log:       log.Named("checkout"),
		SellerID:  cfg.SellerID,
		Service:   cfg.ServiceName,
	}
	if bus != nil {
		coord.Events = bus
	}

	// Router & handlers
	router := httpx.NewRouter(log.Named("http"))
	oh := &httpx.OrdersHandler{Orders: coord, Reader: store, Log: log}
	ih := &httpx.InventoryHandler{Lister: store, Adjuster: coord, Log: log}
	if rdb != nil {
		oh.Idem = &redisx.Idempotency{RDB: rdb}
		oh.Cache = &redisx.StatusCache{RDB: rdb}
		ih.Board = &redisx.StockBoard{RDB: rdb}
	}
	oh.Register(router)
	ih.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store), zap.String("event_bus", cfg.EventBus))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errc:
	}

	// urutan: stop HTTP -> drain worker (email/event) -> flush bus -> tracer
	sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer scancel()
	err = errors.Join(serveErr, srv.Shutdown(sctx), pool.Close(sctx))
	if bus != nil {
		err = errors.Join(err, bus.Close(sctx))
	}
	return errors.Join(err, shutdownTracing(sctx))
}
