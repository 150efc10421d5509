package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"pennywise/internal/core"
	"pennywise/internal/ledger"

	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavor of a Repository.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// Repository is the SQL implementation of ledger.Store. Queries are written
// once with ? placeholders and rebound for Postgres.
type Repository struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect Dialect
	now     func() time.Time
}

var _ ledger.Store = (*Repository)(nil)

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: DialectSQLite, now: time.Now}, nil
}

// NewPostgresRepository connects through a pgx pool exposed as *sql.DB, the
// way the hosted backend's relational tables are reached.
func NewPostgresRepository(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      stdlib.OpenDBFromPool(pool),
		pool:    pool,
		dialect: DialectPostgres,
		now:     time.Now,
	}, nil
}

// WithClock replaces the clock used for created_at stamps.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	var err error
	if r.db != nil {
		err = r.db.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
	return err
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *Repository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *Repository) timeArg(t time.Time) any {
	if r.dialect == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func (r *Repository) dateArg(d core.Date) any {
	if r.dialect == DialectPostgres {
		return d.Time
	}
	return d.String()
}

func (r *Repository) optionalDateArg(d *core.Date) any {
	if d == nil {
		return nil
	}
	return r.dateArg(*d)
}

func (r *Repository) stamp(created time.Time) time.Time {
	if created.IsZero() {
		created = r.now()
	}
	// Both backends keep microseconds.
	return created.UTC().Truncate(time.Microsecond)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, r.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, r.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, q queryer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, r.rebind(query), args...)
}

// inTx runs fn in a transaction, rolling back on any error.
func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// affectedOrNotFound turns a zero-row write into core.ErrNotFound.
func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}
