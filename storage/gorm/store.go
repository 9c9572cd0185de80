// Package gorm implements storage.Store on a relational database through
// GORM. SQLite (mattn/go-sqlite3) and PostgreSQL (pgx) are supported.
package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/poiesic/culldron/storage"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialect names a supported database engine.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const defaultMaxConns = 4

// Store is a GORM-backed storage.Store.
type Store struct {
	db       *gorm.DB
	sqlDB    *sql.DB
	closed   atomic.Bool
	now      func() time.Time
	logger   *slog.Logger
	maxConns int
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger. GORM's own SQL tracing is routed through
// it at debug level.
// Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l == nil {
			l = slog.Default()
		}
		s.logger = l.With("component", "storage")
	}
}

// WithClock overrides the clock used for created_at and ingested_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxConns sets the connection pool size. Ignored for in-memory SQLite.
func WithMaxConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// ParseURL resolves a database URL into a dialect and driver DSN.
//
//	sqlite://culldron.db       -> sqlite, culldron.db
//	sqlite:///culldron.db      -> sqlite, culldron.db
//	sqlite:////var/culldron.db -> sqlite, /var/culldron.db
//	file:culldron.db?mode=rwc  -> sqlite, unchanged
//	postgres://u:p@host/db     -> postgres, unchanged
//	culldron.db                -> sqlite, culldron.db
func ParseURL(url string) (Dialect, string, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return "", "", fmt.Errorf("%w: empty database url", storage.ErrInvalidQuery)
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DialectPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return "", "", fmt.Errorf("%w: sqlite url has no path", storage.ErrInvalidQuery)
		}
		return DialectSQLite, path, nil
	case strings.Contains(url, "://"):
		return "", "", fmt.Errorf("%w: unsupported database url scheme in %q", storage.ErrInvalidQuery, url)
	default:
		return DialectSQLite, url, nil
	}
}

// NewStore opens the database at url, applies migrations and returns a Store.
func NewStore(ctx context.Context, url string, opts ...Option) (storage.Store, error) {
	dialect, dsn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	return openStore(ctx, dialect, dsn, opts...)
}

func openStore(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		now:      time.Now,
		logger:   slog.Default().With("component", "storage"),
		maxConns: defaultMaxConns,
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg := &gorm.Config{
		Logger:         newGormLogger(s.logger),
		TranslateError: true,
		NowFunc:        func() time.Time { return s.now().UTC() },
	}

	var dialector gorm.Dialector
	switch dialect {
	case DialectSQLite:
		memory := isMemoryDSN(dsn)
		sqlDB, err := sql.Open("sqlite3", sqliteDSN(dsn, memory))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		// Each connection to :memory: is a separate database.
		if memory {
			s.maxConns = 1
		}
		sqlDB.SetMaxOpenConns(s.maxConns)
		sqlDB.SetMaxIdleConns(s.maxConns)
		sqlDB.SetConnMaxLifetime(0)
		s.sqlDB = sqlDB
		dialector = sqlite.Dialector{Conn: sqlDB}
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: unsupported dialect %q", storage.ErrInvalidQuery, dialect)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if s.sqlDB != nil {
			_ = s.sqlDB.Close()
		}
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	s.db = db

	if s.sqlDB == nil {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(s.maxConns)
		s.sqlDB = sqlDB
	}

	if err := s.sqlDB.PingContext(ctx); err != nil {
		_ = s.sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db.WithContext(ctx)); err != nil {
		_ = s.sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s.logger.Info("store opened", "dialect", dialect)
	return s, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, ":memory:?") || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN adds connection parameters. Write transactions take the lock
// up front so concurrent runs queue on busy_timeout instead of failing on
// lock upgrade.
func sqliteDSN(path string, memory bool) string {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate"}
	if !memory {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Close closes the database connection.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.sqlDB.Close()
}

type txKey struct{}

// conn returns the transaction carried by ctx, or the root handle.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// WithTransaction executes fn in a transaction. When ctx already carries a
// transaction the work runs in a nested savepoint.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var fnErr error
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(context.WithValue(ctx, txKey{}, tx))
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("%w: %v", storage.ErrTransactionFailed, err)
	}
	return err
}

// translateError maps driver errors onto storage sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}

// gormLogWriter adapts slog for GORM's logger.
type gormLogWriter struct {
	logger *slog.Logger
}

func (w gormLogWriter) Printf(format string, args ...any) {
	w.logger.Debug(fmt.Sprintf(format, args...))
}

func newGormLogger(l *slog.Logger) logger.Interface {
	level := logger.Silent
	if l.Enabled(context.Background(), slog.LevelDebug) {
		level = logger.Info
	}
	return logger.New(gormLogWriter{logger: l}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
