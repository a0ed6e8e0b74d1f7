package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"kestrel-sir/config"
	"kestrel-sir/core/utils"
)

// Querier is the query surface shared by DB and Tx, so store operations
// can run standalone or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Driver() string
}

// DB wraps database/sql with the configured driver. Stores write queries
// with `?` placeholders; they are rebound to $n when running on postgres.
type DB struct {
	sqldb  *sql.DB
	driver string
}

func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "" {
		driver = "sqlite"
	}
	var (
		sqldb *sql.DB
		err   error
	)
	switch driver {
	case "sqlite":
		dsn := cfg.DBURL + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		sqldb, err = sql.Open("sqlite", dsn)
	case "postgres":
		sqldb, err = sql.Open("pgx", cfg.DBURL)
	default:
		return nil, fmt.Errorf("store: unsupported db driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writers; a single connection avoids
		// SQLITE_BUSY churn under concurrent handlers.
		sqldb.SetMaxOpenConns(1)
	}
	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, err
	}
	if logger != nil {
		logger.Infof("store: connected driver=%s", driver)
	}
	return &DB{sqldb: sqldb, driver: driver}, nil
}

func (d *DB) Close() error { return d.sqldb.Close() }

// SQL exposes the raw handle for migration tooling.
func (d *DB) SQL() *sql.DB { return d.sqldb }

func (d *DB) Driver() string { return d.driver }

func (d *DB) rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.sqldb.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sqldb.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sqldb.QueryRowContext(ctx, d.rebind(query), args...)
}

func (d *DB) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := d.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, db: d}, nil
}

// Tx mirrors the DB wrapper inside a transaction.
type Tx struct {
	tx *sql.Tx
	db *DB
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.db.rebind(query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.db.rebind(query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.db.rebind(query), args...)
}

func (t *Tx) Driver() string { return t.db.driver }

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }
