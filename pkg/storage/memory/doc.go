// Package memory provides in-process implementations of the account, catalog
// and one-time code stores. It backs the "memory" storage type and the service tests.
package memory
