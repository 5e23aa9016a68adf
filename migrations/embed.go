// Package migrations embeds the site schema into the binary.
//
// Each driver has its own directory because the DDL differs
// (AUTO_INCREMENT versus INTEGER PRIMARY KEY).
package migrations

import (
	"embed"

	"github.com/olmmcc/sitedb/internal/infrastructure/database"
)

//go:embed mysql/*.sql sqlite3/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
