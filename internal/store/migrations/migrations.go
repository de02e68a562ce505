// Package migrations embeds the schema migrations, one directory per SQL dialect.
package migrations

import "embed"

//go:embed mysql/*.sql postgres/*.sql
var FS embed.FS
