package statedb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// DB wraps the shared state database and hides placeholder differences
// between drivers. Queries are written with ? placeholders.
type DB struct {
	db     *sql.DB
	driver string
}

var (
	hookOnce sync.Once
	// goose keeps its base FS and dialect in package globals.
	gooseMu sync.Mutex
)

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// Open connects to the state database selected by cfg and applies pending
// migrations.
func Open(ctx context.Context, cfg *config.Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("statedb: config is required")
	}
	return OpenDSN(ctx, cfg.State.Driver, cfg.StateDSN())
}

// OpenDSN connects using an explicit driver ("sqlite" or "postgres") and DSN.
func OpenDSN(ctx context.Context, driver, dsn string) (*DB, error) {
	var (
		db      *sql.DB
		err     error
		dialect string
		dir     string
	)
	switch driver {
	case config.StateDriverSQLite, "":
		registerHook()
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("ensure state directory: %w", err)
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite state db: %w", err)
		}
		// WAL allows concurrent readers but one writer per file.
		db.SetMaxOpenConns(1)
		driver, dialect, dir = config.StateDriverSQLite, "sqlite3", "migrations/sqlite"
	case config.StateDriverPostgres:
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres state db: %w", err)
		}
		dialect, dir = "postgres", "migrations/postgres"
	default:
		return nil, fmt.Errorf("statedb: unsupported driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping state db: %w", err)
	}
	if err := migrate(ctx, db, dialect, dir); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db, driver: driver}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("run state migrations: %w", err)
	}
	return nil
}

// Driver reports the normalized driver name.
func (d *DB) Driver() string {
	return d.driver
}

// SQL exposes the underlying handle for callers that manage their own queries.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Close releases the connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ExecContext runs a statement written with ? placeholders.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, d.Rebind(query), args...)
}

// QueryContext runs a query written with ? placeholders.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, d.Rebind(query), args...)
}

// QueryRowContext runs a single-row query written with ? placeholders.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, d.Rebind(query), args...)
}

// Rebind rewrites ? placeholders to $1, $2, ... for postgres. Placeholders
// inside single-quoted literals are left alone.
func (d *DB) Rebind(query string) string {
	if d.driver != config.StateDriverPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var (
		b       strings.Builder
		n       int
		inQuote bool
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
