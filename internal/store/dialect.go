package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Dialect holds the driver-specific parts of statement generation.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string

	// BindType is the sqlx placeholder style for the driver.
	BindType int

	columns func(table string) statement
}

var dialects = map[string]Dialect{
	"mysql": {
		Name:     "mysql",
		BindType: sqlx.QUESTION,
		columns: func(table string) statement {
			return compose(OpColumns, table, "SHOW COLUMNS FROM "+table)
		},
	},
	"sqlite3": {
		Name:     "sqlite3",
		BindType: sqlx.QUESTION,
		columns: func(table string) statement {
			return compose(OpColumns, table, "PRAGMA table_info("+table+")")
		},
	},
	"postgres": {
		Name:     "postgres",
		BindType: sqlx.DOLLAR,
		columns: func(table string) statement {
			return compose(OpColumns, table,
				"SELECT column_name, data_type, is_nullable, column_default "+
					"FROM information_schema.columns WHERE table_name = ", param{table},
				" ORDER BY ordinal_position")
		},
	},
}

// DialectFor returns the Dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDialect, driver)
	}
	return d, nil
}

// columnsStatement returns the introspection statement for table.
func (d Dialect) columnsStatement(table string) statement {
	return d.columns(table)
}
