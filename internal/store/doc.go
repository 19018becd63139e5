// Package store defines the persistence interfaces the study engine core
// consumes: card retrieval and schedule write-back, and the archive for
// completed session snapshots. Implementations live under platform/postgres.
package store
