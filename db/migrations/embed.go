package migrations

import "embed"

// Files holds the SQL schema migrations, applied in filename order.
//
//go:embed *.sql
var Files embed.FS
