package migrations

import "embed"

// FS embeds the schema files.
//
//go:embed *.sql
var FS embed.FS
