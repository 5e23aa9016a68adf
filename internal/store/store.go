package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Connector hands out connections. *sqlx.DB and *database.DB satisfy it.
type Connector interface {
	Connx(ctx context.Context) (*sqlx.Conn, error)
	DriverName() string
}

// Logger defines the logging interface for the store.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Change describes a committed write.
type Change struct {
	Op           string
	Table        string
	Columns      []string
	RowsAffected int64
	LastInsertID int64
	At           time.Time
}

// ChangeNotifier receives a Change after each successful insert, update or
// delete. Notification failures are logged and never fail the write.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, change Change) error
}

// StatementStats describes one executed statement.
type StatementStats struct {
	Op       string
	Table    string
	Duration time.Duration
	Rows     int64
	Err      error
}

// StatementObserver receives StatementStats for every statement that reached
// the database.
type StatementObserver interface {
	ObserveStatement(stats StatementStats)
}

// ExecResult is the outcome of a write.
type ExecResult struct {
	// LastInsertID is zero when the driver does not report one (PostgreSQL).
	LastInsertID int64
	RowsAffected int64
}

// Store runs allowlisted statements against a database.
//
// Every operation validates its table before anything else, acquires one
// connection, runs one statement and releases the connection before
// returning, on success and on failure alike. A Store holds no per-call state
// and is safe for concurrent use once its collaborators are set.
type Store struct {
	conns     Connector
	dialect   Dialect
	allowlist Allowlist

	logger   Logger
	notifier ChangeNotifier
	observer StatementObserver
}

// New creates a Store over conns. The dialect is chosen from the connector's
// driver name.
func New(conns Connector, allowlist Allowlist) (*Store, error) {
	dialect, err := DialectFor(conns.DriverName())
	if err != nil {
		return nil, err
	}
	return &Store{
		conns:     conns,
		dialect:   dialect,
		allowlist: allowlist,
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for the store. Call before first use.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetNotifier sets the receiver of change events. Call before first use.
func (s *Store) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// SetObserver sets the receiver of statement statistics. Call before first use.
func (s *Store) SetObserver(o StatementObserver) {
	s.observer = o
}

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Allowlist returns the store's allowlist.
func (s *Store) Allowlist() Allowlist {
	return s.allowlist
}

// Tables returns the allowed table names in sorted order.
func (s *Store) Tables() []string {
	return s.allowlist.Tables()
}

// query runs a row-returning statement and materialises every row.
func (s *Store) query(ctx context.Context, stmt statement) (ResultSet, error) {
	start := time.Now()
	rs, err := s.runQuery(ctx, stmt)
	s.record(stmt, start, int64(len(rs)), err)
	return rs, err
}

func (s *Store) runQuery(ctx context.Context, stmt statement) (ResultSet, error) {
	query, args := stmt.bind(s.dialect.BindType)

	conn, err := s.conns.Connx(ctx)
	if err != nil {
		return nil, &ExecutionError{Op: stmt.op, Query: query, Err: err}
	}
	defer conn.Close() //nolint:errcheck // Returning the connection to the pool

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ExecutionError{Op: stmt.op, Query: query, Err: err}
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, &ExecutionError{Op: stmt.op, Query: query, Err: err}
	}

	rs := ResultSet{}
	dest := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecutionError{Op: stmt.op, Query: query, Err: err}
		}
		row := make(Row, len(types))
		for i, src := range dest {
			v, err := valueFromDriver(src, types[i].DatabaseTypeName())
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rs = append(rs, row)
	}

	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Op: stmt.op, Query: query, Err: err}
	}
	return rs, nil
}

// exec runs a statement that returns no rows.
func (s *Store) exec(ctx context.Context, stmt statement) (ExecResult, error) {
	start := time.Now()
	res, err := s.runExec(ctx, stmt)
	s.record(stmt, start, res.RowsAffected, err)
	return res, err
}

func (s *Store) runExec(ctx context.Context, stmt statement) (ExecResult, error) {
	query, args := stmt.bind(s.dialect.BindType)

	conn, err := s.conns.Connx(ctx)
	if err != nil {
		return ExecResult{}, &ExecutionError{Op: stmt.op, Query: query, Err: err}
	}
	defer conn.Close() //nolint:errcheck // Returning the connection to the pool

	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return ExecResult{}, &ExecutionError{Op: stmt.op, Query: query, Err: err}
	}

	var res ExecResult
	res.RowsAffected, err = result.RowsAffected()
	if err != nil {
		return ExecResult{}, &ExecutionError{Op: stmt.op, Query: query, Err: err}
	}
	// lib/pq does not support LastInsertId.
	if id, err := result.LastInsertId(); err == nil {
		res.LastInsertID = id
	}
	return res, nil
}

// record logs a finished statement and forwards its stats to the observer.
func (s *Store) record(stmt statement, start time.Time, rows int64, err error) {
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Debug("statement failed",
			"op", stmt.op,
			"table", stmt.table,
			"duration", elapsed,
			"error", err,
		)
	} else {
		s.logger.Debug("statement executed",
			"op", stmt.op,
			"table", stmt.table,
			"rows", rows,
			"duration", elapsed,
		)
	}

	if s.observer != nil {
		s.observer.ObserveStatement(StatementStats{
			Op:       stmt.op,
			Table:    stmt.table,
			Duration: elapsed,
			Rows:     rows,
			Err:      err,
		})
	}
}

// notify publishes a change event. Failures are logged only.
func (s *Store) notify(ctx context.Context, change Change) {
	if s.notifier == nil {
		return
	}
	change.At = time.Now().UTC()
	if err := s.notifier.NotifyChange(ctx, change); err != nil {
		s.logger.Warn("change notification failed",
			"op", change.Op,
			"table", change.Table,
			"error", err,
		)
	}
}

// checkTable wraps allowlist failures with the operation name.
func (s *Store) checkTable(op, table string) error {
	if _, err := s.allowlist.CheckTable(table); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// checkColumns validates column identifiers for table.
func (s *Store) checkColumns(op, table string, columns ...string) error {
	for _, c := range columns {
		if err := s.allowlist.CheckColumn(table, c); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// checkProjection validates a comma-separated column list for table.
func (s *Store) checkProjection(op, table, columns string) error {
	if err := s.allowlist.CheckColumnList(table, columns); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
