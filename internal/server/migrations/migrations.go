// Package migrations embeds the PostgreSQL schema of the store service.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
