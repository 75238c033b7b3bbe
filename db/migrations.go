// Package db carries the SQL schema migrations applied by store.Migrate.
package db

import "embed"

// Migrations holds every *.up.sql file, applied in lexical order.
//
//go:embed migrations/*.up.sql
var Migrations embed.FS
