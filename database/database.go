// Package database is the data-access helper for controllers. It opens a
// pgx pool or a SQLite file behind database/sql and hands out Sessions
// scoped to a call: the pool, one connection, or one transaction.
package database

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverPgx    = "pgx"
	DriverSQLite = "sqlite"
)

// Config holds datasource configuration
type Config struct {
	Driver   string // "pgx" or "sqlite"
	URL      string // postgres://... or a SQLite DSN such as "file:summer.db" or ":memory:"
	Username string // overrides the URL's user (pgx only)
	Password string // overrides the URL's password (pgx only)
	MaxConns int32  // 0 keeps the driver default; SQLite defaults to 1
}

// DB is an open datasource
type DB struct {
	sql     *sql.DB
	pool    *pgxpool.Pool // nil for SQLite
	dialect dialect
	logger  *zap.Logger
}

// Open connects to the configured datasource and pings it
func Open(ctx context.Context, config Config, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch config.Driver {
	case DriverPgx:
		return openPgx(ctx, config, logger)
	case DriverSQLite:
		return openSQLite(ctx, config, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

func openPgx(ctx context.Context, config Config, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if config.Username != "" {
		poolConfig.ConnConfig.User = config.Username
	}
	if config.Password != "" {
		poolConfig.ConnConfig.Password = config.Password
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database",
		zap.String("driver", DriverPgx),
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns))

	return &DB{
		sql:     stdlib.OpenDBFromPool(pool),
		pool:    pool,
		dialect: postgresDialect,
		logger:  logger,
	}, nil
}

func openSQLite(ctx context.Context, config Config, logger *zap.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives and dies with its connection
	maxConns := int(config.MaxConns)
	if maxConns <= 0 {
		maxConns = 1
	}
	conn.SetMaxOpenConns(maxConns)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	logger.Info("Connected to database",
		zap.String("driver", DriverSQLite),
		zap.String("dsn", config.URL))

	return &DB{
		sql:     conn,
		dialect: sqliteDialect,
		logger:  logger,
	}, nil
}

// SQL returns the underlying *sql.DB
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Ping verifies the datasource is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Close releases the datasource
func (db *DB) Close() error {
	err := db.sql.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}

// Placeholder returns the n-th (1-based) bind placeholder for the driver
func (db *DB) Placeholder(n int) string {
	return db.dialect(n)
}

// Session returns a session that runs each statement on any pooled connection
func (db *DB) Session() *Session {
	return &Session{q: db.sql, dialect: db.dialect, logger: db.logger}
}

// WithConn runs fn on a single connection and releases it afterwards
func (db *DB) WithConn(ctx context.Context, fn func(*Session) error) error {
	conn, err := db.sql.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			db.logger.Warn("Failed to release connection", zap.Error(err))
		}
	}()

	return fn(&Session{q: conn, dialect: db.dialect, logger: db.logger})
}

// WithTx runs fn in a transaction. The transaction commits when fn returns
// nil and rolls back when fn returns an error or panics.
func (db *DB) WithTx(ctx context.Context, fn func(*Session) error) (err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Session{q: tx, dialect: db.dialect, logger: db.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecFile executes a SQL file one statement per line. Blank lines and
// lines starting with "--" are skipped. It returns the number of
// statements executed; the first failing line stops the run.
func (db *DB) ExecFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open sql file: %w", err)
	}
	defer f.Close()

	session := db.Session()
	executed := 0
	lineNumber := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if _, err := session.Exec(ctx, line); err != nil {
			return executed, fmt.Errorf("%s:%d: %w", path, lineNumber, err)
		}
		executed++
	}
	if err := scanner.Err(); err != nil {
		return executed, fmt.Errorf("failed to read sql file: %w", err)
	}

	db.logger.Info("SQL file executed",
		zap.String("file", path),
		zap.Int("statements", executed))

	return executed, nil
}

// dialect renders the n-th (1-based) bind placeholder
type dialect func(n int) string

func postgresDialect(n int) string { return "$" + strconv.Itoa(n) }

func sqliteDialect(int) string { return "?" }
