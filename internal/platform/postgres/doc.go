// Package postgres provides PostgreSQL implementations of the study engine's
// persistence interfaces: the card store with its optimistic-concurrency
// schedule write-back, and the archive for completed session snapshots.
package postgres
