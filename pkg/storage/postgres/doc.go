// Package postgres implements the account, one-time code and catalog stores
// on PostgreSQL through database/sql and lib/pq.
//
// Constraint violations surface as storage.ErrConflict (unique) and
// storage.ErrNotFound (foreign key). Code values are unique by a table
// constraint, so InsertUnique is a single INSERT ... ON CONFLICT DO NOTHING.
// Every call is traced and counted in the storage metrics.
package postgres
