// Package storage keeps the ledger of entries already delivered to the channel.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/0x0BSoD/feedrelay/internal/model"
)

const seenTable = "seen"

// ErrStorage wraps every failure of the backing store.
var ErrStorage = errors.New("storage error")

// Ledger is the append-only set of delivered entry ids.
type Ledger interface {
	Has(ctx context.Context, id string) (bool, error)
	Record(ctx context.Context, id string, at time.Time) error
	Close() error
}

type SeenStorage struct {
	db     *sqlx.DB
	flavor sqlbuilder.Flavor
}

type Options struct {
	// DatabaseURL selects the Postgres ledger when set.
	DatabaseURL string
	// Path of the SQLite file used otherwise.
	Path           string
	ConnectTimeout time.Duration
}

// Open picks the ledger variant once, migrates its schema and returns it.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*SeenStorage, error) {
	if opts.DatabaseURL != "" {
		logger.Info("using postgres database for seen-news storage")
		return OpenPostgres(ctx, opts.DatabaseURL, opts.ConnectTimeout)
	}

	logger.Info("using local sqlite database for seen-news storage", "path", opts.Path)
	return OpenSQLite(ctx, opts.Path)
}

func OpenSQLite(ctx context.Context, path string) (*SeenStorage, error) {
	if err := Migrate("sqlite://" + path); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite %s: %w", ErrStorage, path, err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &SeenStorage{db: db, flavor: sqlbuilder.SQLite}, nil
}

// OpenPostgres connects to dsn, retrying with exponential backoff until
// connectTimeout is spent.
func OpenPostgres(ctx context.Context, dsn string, connectTimeout time.Duration) (*SeenStorage, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = connectTimeout

	db, err := backoff.RetryWithData(func() (*sqlx.DB, error) {
		return sqlx.ConnectContext(ctx, "postgres", dsn)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: connect to postgres: %w", ErrStorage, err)
	}

	if err := Migrate(dsn); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &SeenStorage{db: db, flavor: sqlbuilder.PostgreSQL}, nil
}

func hasQuery(flavor sqlbuilder.Flavor, id string) (string, []any) {
	sb := flavor.NewSelectBuilder()
	return sb.Select("1").From(seenTable).Where(sb.Equal("id", id)).Build()
}

// recordQuery inserts id unless it is already present.
func recordQuery(flavor sqlbuilder.Flavor, id string, at time.Time) (string, []any) {
	ib := flavor.NewInsertBuilder()
	return ib.InsertIgnoreInto(seenTable).
		Cols("id", "created_at").
		Values(id, at.UTC()).
		Build()
}

func (s *SeenStorage) Has(ctx context.Context, id string) (bool, error) {
	query, args := hasQuery(s.flavor, id)

	var found int
	if err := s.db.GetContext(ctx, &found, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: lookup %q: %w", ErrStorage, id, err)
	}

	return true, nil
}

// Record stores id. Recording an id twice keeps a single row and is not an error.
func (s *SeenStorage) Record(ctx context.Context, id string, at time.Time) error {
	query, args := recordQuery(s.flavor, id, at)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: record %q: %w", ErrStorage, id, err)
	}

	return nil
}

func (s *SeenStorage) Count(ctx context.Context) (int, error) {
	sb := s.flavor.NewSelectBuilder()
	query, args := sb.Select(sb.As("COUNT(*)", "n")).From(seenTable).Build()

	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrStorage, err)
	}

	return n, nil
}

// Latest returns up to limit most recently recorded items, newest first.
func (s *SeenStorage) Latest(ctx context.Context, limit int) ([]model.SeenItem, error) {
	sb := s.flavor.NewSelectBuilder()
	query, args := sb.Select("id", "created_at").
		From(seenTable).
		OrderBy("created_at").Desc().
		Limit(limit).
		Build()

	var items []model.SeenItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("%w: latest: %w", ErrStorage, err)
	}

	return items, nil
}

func (s *SeenStorage) Close() error {
	return s.db.Close()
}
