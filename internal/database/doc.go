// Package database provides the PostgreSQL connection pool and schema
// migrations.
//
// A single bounded pool is shared by every command; the backing store
// (e.g. Neon) may throttle, so the pool stays small. Migrations are plain
// *.sql files applied in lexical order, each recorded once in
// schema_migrations.
package database
