// Package migrations embeds the SQLite schema migrations applied by
// database.Open through goose.
package migrations

import "embed"

// FS holds every *.sql migration file.
//
//go:embed *.sql
var FS embed.FS
