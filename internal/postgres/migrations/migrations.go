// Package migrations embeds the goose SQL migration files so the built
// binary carries its own schema and never depends on files present on the
// deploy host.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
