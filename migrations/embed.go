// Package migrations embeds the SQL migrations applied by "migrate up".
package migrations

import "embed"

// FS holds the migration files, named "<version>_<name>.sql".
//
//go:embed *.sql
var FS embed.FS
