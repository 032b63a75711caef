package migrations

import "embed"

// PostgresFS holds the numbered Postgres schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the trade archive DDL for ClickHouse.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
