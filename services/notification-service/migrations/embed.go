package migrations

import "embed"

// FS holds the notification log and inbox migrations.
//
//go:embed *.sql
var FS embed.FS
