// Package migrations embeds the SQL schema migrations that are applied on
// startup when postgres.migrate is enabled.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
