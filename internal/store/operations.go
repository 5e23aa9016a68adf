package store

import (
	"context"
	"errors"
	"fmt"
)

// GetLike returns every column of the rows in table whose column matches the
// SQL LIKE pattern. The pattern is passed through unchanged, so "%" and "_"
// keep their wildcard meaning.
func (s *Store) GetLike(ctx context.Context, table, column, pattern string) (ResultSet, error) {
	if err := s.checkTable(OpGetLike, table); err != nil {
		return nil, err
	}
	if err := s.checkColumns(OpGetLike, table, column); err != nil {
		return nil, err
	}
	return s.query(ctx, getLikeStatement(table, column, pattern))
}

// GetSome returns the given comma-separated columns for every row of table.
// columns is interpolated verbatim, e.g. "id, title" or "COUNT(*)".
func (s *Store) GetSome(ctx context.Context, table, columns string) (ResultSet, error) {
	if err := s.checkTable(OpGetSome, table); err != nil {
		return nil, err
	}
	if err := s.checkProjection(OpGetSome, table, columns); err != nil {
		return nil, err
	}
	return s.query(ctx, getSomeStatement(table, columns))
}

// GetSomeLike is GetSome restricted to rows whose column matches pattern.
func (s *Store) GetSomeLike(ctx context.Context, table, columns, column, pattern string) (ResultSet, error) {
	if err := s.checkTable(OpGetSomeLike, table); err != nil {
		return nil, err
	}
	if err := s.checkProjection(OpGetSomeLike, table, columns); err != nil {
		return nil, err
	}
	if err := s.checkColumns(OpGetSomeLike, table, column); err != nil {
		return nil, err
	}
	return s.query(ctx, getSomeLikeStatement(table, columns, column, pattern))
}

// GetSomeNull is GetSome restricted to rows whose column IS NULL.
func (s *Store) GetSomeNull(ctx context.Context, table, columns, column string) (ResultSet, error) {
	if err := s.checkTable(OpGetSomeNull, table); err != nil {
		return nil, err
	}
	if err := s.checkProjection(OpGetSomeNull, table, columns); err != nil {
		return nil, err
	}
	if err := s.checkColumns(OpGetSomeNull, table, column); err != nil {
		return nil, err
	}
	return s.query(ctx, getSomeNullStatement(table, columns, column))
}

// GetAll returns every row of table. When ordered is true rows are sorted by
// ascending id; otherwise the database's natural order is kept.
func (s *Store) GetAll(ctx context.Context, table string, ordered bool) (ResultSet, error) {
	if err := s.checkTable(OpGetAll, table); err != nil {
		return nil, err
	}
	return s.query(ctx, getAllStatement(table, ordered))
}

// Columns returns the dialect's column description of table, one row per
// column. The first cell of each row is the column name on every dialect.
func (s *Store) Columns(ctx context.Context, table string) (ResultSet, error) {
	if err := s.checkTable(OpColumns, table); err != nil {
		return nil, err
	}
	rs, err := s.query(ctx, s.dialect.columnsStatement(table))
	if err != nil {
		return nil, err
	}
	// PRAGMA table_info leads with the column index; drop it so the name
	// comes first as it does for the other dialects.
	if s.dialect.Name == "sqlite3" {
		for i, row := range rs {
			if len(row) > 1 {
				rs[i] = row[1:]
			}
		}
	}
	return rs, nil
}

// ColumnNames returns just the column names of table in definition order.
func (s *Store) ColumnNames(ctx context.Context, table string) ([]string, error) {
	rs, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rs))
	for _, row := range rs {
		if len(row) == 0 {
			continue
		}
		name, err := Decode[string](row[0])
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Exists reports whether any row of table has column matching pattern.
func (s *Store) Exists(ctx context.Context, table, column, pattern string) (bool, error) {
	if err := s.checkTable(OpExists, table); err != nil {
		return false, err
	}
	if err := s.checkColumns(OpExists, table, column); err != nil {
		return false, err
	}
	stmt := getLikeStatement(table, column, pattern)
	stmt.op = OpExists
	rs, err := s.query(ctx, stmt)
	if err != nil {
		return false, err
	}
	for _, row := range rs {
		if len(row) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Insert adds one row. columns and values pair up positionally; an empty
// value is stored as NULL.
func (s *Store) Insert(ctx context.Context, table string, columns, values []string) (ExecResult, error) {
	if err := s.checkTable(OpInsert, table); err != nil {
		return ExecResult{}, err
	}
	if len(columns) == 0 || len(columns) != len(values) {
		return ExecResult{}, fmt.Errorf("%s: %w: %d columns, %d values",
			OpInsert, ErrInvalidStatement, len(columns), len(values))
	}
	if err := s.checkColumns(OpInsert, table, columns...); err != nil {
		return ExecResult{}, err
	}

	res, err := s.exec(ctx, insertStatement(table, columns, values))
	if err != nil {
		return ExecResult{}, err
	}
	s.notify(ctx, Change{
		Op:           OpInsert,
		Table:        table,
		Columns:      append([]string(nil), columns...),
		RowsAffected: res.RowsAffected,
		LastInsertID: res.LastInsertID,
	})
	return res, nil
}

// Update sets column to value on every row where whereColumn equals
// whereValue, returning the number of rows changed. Matching no rows is not
// an error.
func (s *Store) Update(ctx context.Context, table, whereColumn, whereValue, column, value string) (int64, error) {
	if err := s.checkTable(OpUpdate, table); err != nil {
		return 0, err
	}
	if err := s.checkColumns(OpUpdate, table, whereColumn, column); err != nil {
		return 0, err
	}

	res, err := s.exec(ctx, updateStatement(table, whereColumn, whereValue, column, value))
	if err != nil {
		return 0, err
	}
	s.notify(ctx, Change{
		Op:           OpUpdate,
		Table:        table,
		Columns:      []string{column, whereColumn},
		RowsAffected: res.RowsAffected,
	})
	return res.RowsAffected, nil
}

// MaxID returns the greatest id in table, or ErrEmptyTable.
func (s *Store) MaxID(ctx context.Context, table string) (int64, error) {
	return s.aggregateID(ctx, OpMaxID, "MAX", table)
}

// MinID returns the smallest id in table, or ErrEmptyTable.
func (s *Store) MinID(ctx context.Context, table string) (int64, error) {
	return s.aggregateID(ctx, OpMinID, "MIN", table)
}

func (s *Store) aggregateID(ctx context.Context, op, fn, table string) (int64, error) {
	if err := s.checkTable(op, table); err != nil {
		return 0, err
	}
	rs, err := s.query(ctx, aggregateIDStatement(op, fn, table))
	if err != nil {
		return 0, err
	}
	if len(rs) == 0 || len(rs[0]) == 0 || rs[0][0].IsNull() {
		return 0, fmt.Errorf("%s: %w: %q", op, ErrEmptyTable, table)
	}
	return Decode[int64](rs[0][0])
}

// Delete removes every row where whereColumn equals whereValue, returning
// the number of rows removed. Matching no rows is not an error.
func (s *Store) Delete(ctx context.Context, table, whereColumn, whereValue string) (int64, error) {
	if err := s.checkTable(OpDelete, table); err != nil {
		return 0, err
	}
	if err := s.checkColumns(OpDelete, table, whereColumn); err != nil {
		return 0, err
	}

	res, err := s.exec(ctx, deleteStatement(table, whereColumn, whereValue))
	if err != nil {
		return 0, err
	}
	s.notify(ctx, Change{
		Op:           OpDelete,
		Table:        table,
		Columns:      []string{whereColumn},
		RowsAffected: res.RowsAffected,
	})
	return res.RowsAffected, nil
}

// Ping acquires a connection and verifies the database answers.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.conns.Connx(ctx)
	if err != nil {
		return &ExecutionError{Op: OpPing, Err: err}
	}
	defer conn.Close() //nolint:errcheck // Returning the connection to the pool

	if err := conn.PingContext(ctx); err != nil {
		return &ExecutionError{Op: OpPing, Err: err}
	}
	return nil
}

// IsNotAllowed reports whether err was caused by an identifier outside the
// allowlist.
func IsNotAllowed(err error) bool {
	return errors.Is(err, ErrTableNotAllowed) || errors.Is(err, ErrColumnNotAllowed)
}
