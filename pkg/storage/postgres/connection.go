package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

const backend = "postgres"

var tracer = otel.Tracer("github.com/platinummonkey/jobportal/pkg/storage/postgres")

// PostgreSQL error codes mapped to storage sentinels
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Connect opens a pooled connection and verifies it with a ping
func Connect(ctx context.Context, cfg storage.Config) (*sql.DB, error) {
	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.PostgresMaxConns)
	db.SetMaxIdleConns(cfg.PostgresMinConns)
	db.SetConnMaxLifetime(cfg.PostgresConnMaxLifetime)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := cfg.PostgresTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// instrument wraps store calls in a span and a storage metric
type instrument struct {
	metrics *observability.Metrics
}

func (in instrument) start(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "Postgres."+op, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
	))
	start := time.Now()
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		// not-found is an answer, not a failure
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			in.metrics.RecordStorageOperation(op, backend, start, err)
		} else {
			in.metrics.RecordStorageOperation(op, backend, start, nil)
		}
		span.End()
	}
}

// mapError translates constraint violations into storage sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrConflict, pqErr.Constraint)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", storage.ErrMissingReference, pqErr.Constraint)
		}
	}
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// where accumulates positional predicates
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	out := " WHERE " + w.clauses[0]
	for _, c := range w.clauses[1:] {
		out += " AND " + c
	}
	return out
}

// page appends LIMIT and OFFSET placeholders and returns the clause and args
func (w *where) page(p storage.Page) (string, []interface{}) {
	p = p.Normalize()
	args := append(append([]interface{}(nil), w.args...), p.Limit, p.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
