// Package migrations embeds the SQL schema migrations so the migrate CLI
// works without a checkout of this directory.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql pair in this directory
//
//go:embed *.sql
var FS embed.FS
