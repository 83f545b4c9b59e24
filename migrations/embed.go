// Package migrations embeds the SQL schema so the API and tripctl can migrate without files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
