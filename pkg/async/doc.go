// Package async runs background work without leaking goroutines or crashing
// the process on panics.
//
// SafeGo is for one-off tasks. WorkerPool backs the mail outbox used when
// one-time codes are delivered asynchronously:
//
//	pool := async.NewWorkerPool(ctx, 4, 64, "mail outbox", 15*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//	_ = pool.Submit(func(ctx context.Context) error { return mailer.SendCode(ctx, to, code, "login", ttl) })
package async
