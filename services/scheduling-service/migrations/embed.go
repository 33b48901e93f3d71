package migrations

import "embed"

// FS holds the scheduling schema migrations.
//
//go:embed *.sql
var FS embed.FS
