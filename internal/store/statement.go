package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Operation names, used in errors, logs, metrics and change events.
const (
	OpGetLike     = "get_like"
	OpGetSome     = "get_some"
	OpGetSomeLike = "get_some_like"
	OpGetSomeNull = "get_some_null"
	OpGetAll      = "get_all"
	OpColumns     = "columns"
	OpExists      = "exists"
	OpInsert      = "insert"
	OpUpdate      = "update"
	OpMaxID       = "max_id"
	OpMinID       = "min_id"
	OpDelete      = "delete"
	OpPing        = "ping"
)

// statement is a generated SQL statement before placeholder binding.
//
// Identifiers are interpolated into parts and must have passed the
// allowlist. Caller-supplied data travels only through args; a placeholder
// sits between each pair of consecutive parts, so len(parts) ==
// len(args)+1. Interpolated text is never scanned for placeholders, which
// keeps ":" and "?" inside trusted column expressions intact.
type statement struct {
	op    string
	table string
	parts []string
	args  []any
}

// param marks a bound value in compose.
type param struct{ v any }

// compose builds a statement from SQL text fragments and params.
func compose(op, table string, fragments ...any) statement {
	stmt := statement{op: op, table: table, parts: []string{""}}
	for _, f := range fragments {
		switch f := f.(type) {
		case param:
			stmt.args = append(stmt.args, f.v)
			stmt.parts = append(stmt.parts, "")
		case string:
			stmt.parts[len(stmt.parts)-1] += f
		default:
			panic(fmt.Sprintf("store: compose fragment of type %T", f))
		}
	}
	return stmt
}

// bind renders the statement for a placeholder style, returning the final
// query text and its positional arguments. Only placeholders written by the
// builders are numbered.
func (s statement) bind(bindType int) (string, []any) {
	var b strings.Builder
	for i, part := range s.parts {
		b.WriteString(part)
		if i < len(s.args) {
			b.WriteString(placeholder(bindType, i+1))
		}
	}
	return b.String(), s.args
}

func placeholder(bindType, n int) string {
	switch bindType {
	case sqlx.DOLLAR:
		return "$" + strconv.Itoa(n)
	case sqlx.AT:
		return "@p" + strconv.Itoa(n)
	default:
		return "?"
	}
}

func getLikeStatement(table, column, pattern string) statement {
	return compose(OpGetLike, table,
		"SELECT * FROM "+table+" WHERE "+column+" LIKE ", param{pattern})
}

func getSomeStatement(table, columns string) statement {
	return compose(OpGetSome, table, "SELECT "+columns+" FROM "+table)
}

func getSomeLikeStatement(table, columns, column, pattern string) statement {
	return compose(OpGetSomeLike, table,
		"SELECT "+columns+" FROM "+table+" WHERE "+column+" LIKE ", param{pattern})
}

func getSomeNullStatement(table, columns, column string) statement {
	return compose(OpGetSomeNull, table,
		"SELECT "+columns+" FROM "+table+" WHERE "+column+" IS NULL")
}

func getAllStatement(table string, ordered bool) statement {
	query := "SELECT * FROM " + table
	if ordered {
		query += " ORDER BY id"
	}
	return compose(OpGetAll, table, query)
}

// insertStatement binds every value; the empty string is stored as NULL.
func insertStatement(table string, columns, values []string) statement {
	fragments := []any{"INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES ("}
	for i, v := range values {
		if i > 0 {
			fragments = append(fragments, ", ")
		}
		if v == "" {
			fragments = append(fragments, param{nil})
		} else {
			fragments = append(fragments, param{v})
		}
	}
	fragments = append(fragments, ")")
	return compose(OpInsert, table, fragments...)
}

func updateStatement(table, whereColumn, whereValue, column, value string) statement {
	return compose(OpUpdate, table,
		"UPDATE "+table+" SET "+column+" = ", param{value},
		" WHERE "+whereColumn+" = ", param{whereValue})
}

func aggregateIDStatement(op, fn, table string) statement {
	return compose(op, table, "SELECT "+fn+"(id) FROM "+table)
}

func deleteStatement(table, whereColumn, whereValue string) statement {
	return compose(OpDelete, table,
		"DELETE FROM "+table+" WHERE "+whereColumn+" = ", param{whereValue})
}
