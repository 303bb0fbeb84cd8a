// Package migrations embeds SQL migration files.
package migrations

import "embed"

// PostgresFS contiene las migraciones del esquema de usuarios en formato
// golang-migrate ({version}_{name}.{up|down}.sql).
//
//go:embed *.sql
var PostgresFS embed.FS
