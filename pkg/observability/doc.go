// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("action", "LOGIN").Info("code issued")
//
// Request-scoped loggers carry the request id and user id:
//
//	observability.FromContext(r.Context()).WithError(err).Error("login failed")
//
// # Metrics
//
// NewMetrics registers HTTP, storage and account metrics on a registry. The
// Record* helpers are nil-safe so services can run without metrics in tests:
//
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordOTPIssued("REGISTER", delivered)
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.AddCheck("blob", blobStore.HealthCheck, false)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "jobportal",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
