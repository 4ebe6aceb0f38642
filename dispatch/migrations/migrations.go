// Package migrations embeds the parcel store schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
