// Package storage holds the shared storage configuration and sentinel errors.
//
// Backends live in subpackages:
//
//   - memory: mutex-guarded maps, used for development and service tests
//   - postgres: database/sql with lib/pq, schema migrations, atomic code inserts
//   - redisotp: one-time codes in Redis using SETNX for value uniqueness
//   - blob: S3-compatible object storage and a local directory fallback
//
// Stores translate driver errors to ErrNotFound and ErrConflict so services can
// classify failures without knowing the backend.
package storage
