// Package migrations embeds the SQL schema migrations applied by the
// database-backed stores.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
