// Command jobportal serves the job portal HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/jobportal/pkg/accounts"
	"github.com/platinummonkey/jobportal/pkg/api"
	"github.com/platinummonkey/jobportal/pkg/async"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/authz"
	"github.com/platinummonkey/jobportal/pkg/catalog"
	"github.com/platinummonkey/jobportal/pkg/config"
	"github.com/platinummonkey/jobportal/pkg/identity"
	"github.com/platinummonkey/jobportal/pkg/mailer"
	"github.com/platinummonkey/jobportal/pkg/middleware"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/otp"
	"github.com/platinummonkey/jobportal/pkg/storage"
	"github.com/platinummonkey/jobportal/pkg/storage/blob"
	"github.com/platinummonkey/jobportal/pkg/storage/memory"
	"github.com/platinummonkey/jobportal/pkg/storage/postgres"
	"github.com/platinummonkey/jobportal/pkg/storage/redisotp"
	"github.com/platinummonkey/jobportal/pkg/upload"
)

var version = "dev"

type stores struct {
	db       *sql.DB
	accounts accounts.Store
	codes    otp.Store
	catalog  catalog.Store
}

func main() {
	port := flag.String("port", "", "Port to listen on (overrides JOBPORTAL_PORT)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("jobportal exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	st, err := openStores(ctx, cfg.Storage, logger, metrics)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = redisotp.NewClient(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		st.codes = redisotp.NewStore(redisClient, metrics)
		logger.Info("One-time codes stored in Redis")
	}

	blobs, err := openBlobStore(ctx, cfg.Storage, metrics)
	if err != nil {
		return err
	}

	var send otp.Mailer
	smtpSender, err := mailer.NewSMTPSender(cfg.Mail, logger)
	switch {
	case errors.Is(err, mailer.ErrNotConfigured):
		logger.Warn("SMTP is not configured, codes will be written to the log")
		send = mailer.NewLogSender(logger)
	case err != nil:
		return err
	default:
		send = smtpSender
	}

	var google identity.Verifier
	if cfg.Auth.GoogleEnabled() {
		v, err := identity.NewGoogleVerifier(ctx, cfg.Auth.Google)
		if err != nil {
			return fmt.Errorf("failed to initialize Google sign-in: %w", err)
		}
		google = v
	}

	sessions, err := auth.NewSessionManager([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionIssuer)
	if err != nil {
		return err
	}

	otpCfg := otp.DefaultConfig()
	otpCfg.DeliveryTimeout = cfg.OTP.DeliveryTimeout
	otpCfg.AsyncDelivery = cfg.OTP.AsyncDelivery
	codes := otp.NewService(st.codes, st.accounts, send, otpCfg, logger, metrics)

	var outbox *async.WorkerPool
	if cfg.OTP.AsyncDelivery {
		outbox = async.NewWorkerPool(ctx, cfg.OTP.OutboxWorkers, cfg.OTP.OutboxQueue, "otp-delivery", cfg.OTP.DeliveryTimeout, logger)
		codes.WithOutbox(outbox)
	}

	accts := accounts.NewService(st.accounts, codes, sessions, google, logger, metrics)
	authorizer := authz.NewAuthorizer(sessions, st.accounts, cfg.Storage.UserCacheSize, cfg.Storage.EffectiveUserCacheTTL(), logger, metrics)
	accts.OnStatusChange(authorizer.Invalidate)

	health := observability.NewHealthChecker(st.db, redisClient)
	health.SetVersion(version)
	health.AddCheck("blob", blobs.HealthCheck, true)

	deps := api.Deps{
		Codes:       codes,
		Accounts:    accts,
		Catalog:     catalog.NewService(st.catalog, logger),
		Authorizer:  authorizer,
		Uploader:    upload.NewUploader(blobs, cfg.Upload, logger, metrics),
		Logger:      logger,
		Health:      health,
		Metrics:     metrics,
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Registry = registry
	}
	if cfg.Observability.OTel.Enabled {
		deps.ServiceName = cfg.Observability.OTel.ServiceName
	}
	if local, ok := blobs.(*blob.LocalStore); ok {
		deps.LocalUploadDir = local.Root()
		deps.UploadsPath = cfg.Storage.LocalBlobBaseURL
	}
	if cfg.RateLimit.Enabled {
		deps.OTPLimiter = newLimiter(ctx, redisClient, &cfg.RateLimit.OTP, "ratelimit:otp:")
		deps.APILimiter = newLimiter(ctx, redisClient, &cfg.RateLimit.API, "ratelimit:api:")
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	if outbox != nil {
		shutdown.RegisterShutdownFunc("otp-outbox", func(ctx context.Context) error {
			return outbox.Shutdown(remaining(ctx))
		})
	}
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	if st.db != nil {
		shutdown.RegisterShutdownFunc("postgres", func(context.Context) error {
			return st.db.Close()
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting jobportal %s on %s", version, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go func() {
		if err, ok := <-errCh; ok {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	return shutdown.WaitForShutdown(ctx)
}

func openStores(ctx context.Context, cfg storage.Config, logger *observability.Logger, metrics *observability.Metrics) (*stores, error) {
	if cfg.Type != storage.TypePostgres {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return &stores{
			accounts: memory.NewAccountStore(),
			codes:    memory.NewOTPStore(),
			catalog:  memory.NewCatalogStore(),
		}, nil
	}

	db, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &stores{
		db:       db,
		accounts: postgres.NewAccountStore(db, metrics),
		codes:    postgres.NewOTPStore(db, metrics),
		catalog:  postgres.NewCatalogStore(db, metrics),
	}, nil
}

func openBlobStore(ctx context.Context, cfg storage.Config, metrics *observability.Metrics) (blob.Store, error) {
	if cfg.S3Bucket != "" {
		return blob.NewS3Store(ctx, cfg, metrics)
	}
	return blob.NewLocalStore(cfg.LocalBlobRoot, cfg.LocalBlobBaseURL, metrics)
}

func newLimiter(ctx context.Context, client *redis.Client, cfg *middleware.RateLimitConfig, prefix string) middleware.Limiter {
	if client != nil {
		return middleware.NewDistributedRateLimiter(client, cfg, prefix)
	}
	rl := middleware.NewRateLimiter(cfg)
	rl.StartCleanup(ctx)
	return rl
}

// remaining converts the context deadline into a timeout for APIs that take one
func remaining(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 30 * time.Second
}
