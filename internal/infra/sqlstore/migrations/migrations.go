// Package migrations holds the schema history shared by the sqlite and
// postgres backends. Tables are declared with bun builders so one
// migration serves both dialects.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
