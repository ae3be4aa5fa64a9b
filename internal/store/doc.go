// Package store persists markets, tracked-market state, orderbook
// snapshots, and derived features to Postgres.
//
// All writes are idempotent: market rows are full-overwrite upserts,
// snapshot rows insert-once per (token_id, ts_utc), and feature rows
// overwrite on conflict so recomputation is safe.
package store
