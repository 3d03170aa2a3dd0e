// Package repository holds the storage backends behind the pipeline's store interfaces:
// Postgres and Elasticsearch for durable data, Redis for session counters, and in-memory
// variants for single-instance deployments and tests.
package repository

import "errors"

// ErrNotFound is returned by lookups that have no row to return.
var ErrNotFound = errors.New("not found")
