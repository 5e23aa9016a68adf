// Package database opens the sitedb database endpoint.
//
// This package manages:
//   - DSN construction for the mysql, postgres and sqlite3 drivers
//   - A sqlx.DB pool with configured limits and a startup ping
//   - Embedded schema migrations, one directory per driver
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and live under migrations/<driver>/.
package database
