package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/olmmcc/sitedb/internal/infrastructure/config"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for a sqlite database directory.
	dirPermissions = 0750

	// defaultConnectTimeout is used when the config leaves connect_timeout unset.
	defaultConnectTimeout = 5 * time.Second

	// sqliteBusyTimeoutMS is the sqlite lock wait in milliseconds.
	sqliteBusyTimeoutMS = 5000
)

// DB wraps a sqlx.DB connected to the configured endpoint.
type DB struct {
	*sqlx.DB
	driver string
}

// Open connects to the database described by cfg.
//
// It performs the following setup:
//  1. Builds the driver DSN (unless cfg.DSN is given verbatim)
//  2. Opens the pool and applies connection limits
//  3. Verifies the connection with a ping bounded by connect_timeout
//
// The returned DB is a pool; callers acquire a connection per statement.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	// Zero idle connections means every acquisition dials a new one.
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if lifetime := cfg.GetConnMaxLifetime(); lifetime > 0 {
		sqlDB.SetConnMaxLifetime(lifetime)
	}

	db := &DB{
		DB:     sqlDB,
		driver: cfg.Driver,
	}

	timeout := cfg.GetConnectTimeout()
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	return db, nil
}

// BuildDSN returns the data source name for cfg.
// A non-empty cfg.DSN is returned unchanged.
func BuildDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	switch cfg.Driver {
	case config.DriverMySQL:
		return mysqlDSN(cfg), nil
	case config.DriverPostgres:
		return postgresDSN(cfg), nil
	case config.DriverSQLite:
		return sqliteDSN(cfg)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// mysqlDSN builds a go-sql-driver DSN. parseTime is always enabled so
// DATE/DATETIME columns decode to time.Time.
func mysqlDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 3306)))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	if timeout := cfg.GetConnectTimeout(); timeout > 0 {
		mc.Timeout = timeout
	}
	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

// postgresDSN builds a lib/pq URL-style connection string.
func postgresDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 5432))),
		Path:   "/" + cfg.Name,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}

	q := url.Values{}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	if cfg.ConnectTimeout > 0 && q.Get("connect_timeout") == "" {
		q.Set("connect_timeout", strconv.Itoa(cfg.ConnectTimeout))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// sqliteDSN builds a go-sqlite3 file DSN, creating the parent directory.
func sqliteDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}

	params := []string{
		"_busy_timeout=" + strconv.Itoa(sqliteBusyTimeoutMS),
		"_foreign_keys=on",
	}
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params = append(params, url.QueryEscape(k)+"="+url.QueryEscape(cfg.Params[k]))
	}

	return fmt.Sprintf("file:%s?%s", cfg.Path, strings.Join(params, "&")), nil
}

func portOr(port, fallback int) int {
	if port == 0 {
		return fallback
	}
	return port
}

// Driver returns the database/sql driver name the pool was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the database pool gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// BeginTx starts a new transaction with the given options.
// Statement operations never use transactions; migrations do.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	tx, err := db.DB.BeginTxx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
