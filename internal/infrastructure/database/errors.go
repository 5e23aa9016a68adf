package database

import "errors"

var (
	// ErrUnsupportedDriver is returned when the configured driver is not
	// one of mysql, postgres or sqlite3.
	ErrUnsupportedDriver = errors.New("database: unsupported driver")

	// ErrMigrationNotFound is returned by MigrateDown when the latest applied
	// version has no embedded migration file.
	ErrMigrationNotFound = errors.New("database: migration not found")
)
