// Command otp-purge periodically deletes expired one-time codes.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/jobportal/pkg/config"
	"github.com/platinummonkey/jobportal/pkg/storage"
	"github.com/platinummonkey/jobportal/pkg/storage/postgres"
	"github.com/platinummonkey/jobportal/pkg/storage/redisotp"
)

var (
	schedule = flag.String("schedule", "", "Cron schedule for the purge (overrides JOBPORTAL_PURGE_SCHEDULE)")
	runOnce  = flag.Bool("run-once", false, "Purge once and exit")
)

var errNoDurableStore = errors.New("otp-purge needs postgres storage or a redis url")

// purger is the part of an OTP store the job needs
type purger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *schedule != "" {
		cfg.Purge.Schedule = *schedule
	}

	logger := setupLogger(cfg.Observability.LogLevel)

	store, closeStore, err := openStore(context.Background(), cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to open code store: %v", err)
	}
	defer closeStore()

	if *runOnce {
		if err := purge(store, cfg.Purge.Timeout, logger); err != nil {
			logger.Fatalf("Purge failed: %v", err)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Purge.Schedule, func() {
		if err := purge(store, cfg.Purge.Timeout, logger); err != nil {
			logger.Errorf("Purge failed: %v", err)
		}
	}); err != nil {
		logger.Fatalf("Invalid purge schedule %q: %v", cfg.Purge.Schedule, err)
	}

	c.Start()
	logger.Infof("OTP purge scheduled: %s", cfg.Purge.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down OTP purge...")
	ctx := c.Stop()
	<-ctx.Done()
	logger.Info("OTP purge stopped")
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// openStore picks the store the API server writes codes to: Redis when a URL
// is configured, otherwise PostgreSQL. The in-memory store lives inside the
// server process and has nothing to purge from here.
func openStore(ctx context.Context, cfg storage.Config) (purger, func(), error) {
	if cfg.RedisURL != "" {
		client, err := redisotp.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return redisotp.NewStore(client, nil), func() { client.Close() }, nil
	}
	if cfg.Type != storage.TypePostgres {
		return nil, nil, errNoDurableStore
	}
	db, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewOTPStore(db, nil), func() { db.Close() }, nil
}

func purge(store purger, timeout time.Duration, logger *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	n, err := store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"deleted":  n,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Expired one-time codes purged")
	return nil
}
