// Package migrations embeds the PostgreSQL schema migrations and the SQLite schema
package migrations

import "embed"

// Postgres holds the golang-migrate files (NNNNNN_name.up.sql / .down.sql)
//
//go:embed *.sql
var Postgres embed.FS

// SQLiteSchema creates the same tables for the embedded development store
//
//go:embed sqlite/schema.sql
var SQLiteSchema string
