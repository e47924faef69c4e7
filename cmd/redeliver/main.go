// Command redeliver retries emails that landed in the local spool.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/config"
	"github.com/ariefcatur/go-checkout/internal/notify"
	"github.com/ariefcatur/go-checkout/internal/observability"
)

const batch = 50

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := observability.NewLogger(cfg.ServiceName+"-redeliver", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	spool, err := notify.OpenSpool(cfg.SpoolPath)
	if err != nil {
		log.Fatal("open spool", zap.Error(err))
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
		log.Fatal("smtp", zap.Error(err))
	}
	d := notify.NewDispatcher(sender, spool, log, notify.Config{MaxAttempts: cfg.MaxSpoolAttempts})

	tick := time.NewTicker(cfg.RedeliverEvery)
	defer tick.Stop()
	log.Info("redeliver loop started", zap.Duration("every", cfg.RedeliverEvery), zap.String("spool", cfg.SpoolPath))
	for {
		pass(ctx, d, spool, log)
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-tick.C:
		}
	}
}

func pass(ctx context.Context, d *notify.Dispatcher, spool *notify.Spool, log *zap.Logger) {
	st, err := d.Drain(ctx, batch)
	if err != nil {
		log.Error("redeliver", zap.Error(err))
	}
	if st.Delivered+st.Retrying+st.Dead > 0 {
		log.Info("redeliver pass", zap.Int("delivered", st.Delivered), zap.Int("retrying", st.Retrying), zap.Int("dead", st.Dead))
	}
	if counts, err := spool.Counts(ctx); err == nil {
		log.Debug("spool counts", zap.Any("counts", counts))
	}
}
