// Package postgres persists collected articles in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmpark/stocknews-collector/internal/news"
)

// dbConn is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ArticleStoreConfig configures the connection pool.
type ArticleStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// ArticleStore writes articles and reads the per-day watermark.
type ArticleStore struct {
	db     dbConn
	table  string
	logger *zap.Logger
}

// NewArticleStore connects a pool using the given configuration.
func NewArticleStore(ctx context.Context, cfg ArticleStoreConfig, logger *zap.Logger) (*ArticleStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return NewArticleStoreWithPool(pool, cfg.Table, logger)
}

// NewArticleStoreWithPool wraps an existing pool, which tests rely on.
func NewArticleStoreWithPool(db dbConn, table string, logger *zap.Logger) (*ArticleStore, error) {
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleStore{db: db, table: table, logger: logger}, nil
}

// InsertArticles writes a batch inside a single transaction. Any failure
// rolls the whole batch back.
func (s *ArticleStore) InsertArticles(ctx context.Context, articles []news.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return &news.PersistenceError{Table: s.table, Batch: len(articles), Err: err}
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(
		`INSERT INTO %s (title, link, section, keyword, pub_date, pub_time) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.table,
	)
	for _, a := range articles {
		_, err := tx.Exec(ctx, query,
			a.Title,
			a.Link,
			a.Section,
			a.Keyword,
			a.PublishedAt.Format("2006-01-02"),
			a.PublishedAt.Format("15:04:05"),
		)
		if err != nil {
			return &news.PersistenceError{Table: s.table, Batch: len(articles), Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &news.PersistenceError{Table: s.table, Batch: len(articles), Err: err}
	}

	s.logger.Debug("inserted article batch",
		zap.String("table", s.table),
		zap.Int("count", len(articles)))
	return nil
}

// MaxPublishTime returns the latest pub_time ("HH:MM:SS") stored for the
// given date, or "00:00:00" when the day has no rows yet.
func (s *ArticleStore) MaxPublishTime(ctx context.Context, date time.Time) (string, error) {
	query := fmt.Sprintf(
		`SELECT COALESCE(MAX(pub_time), '00:00:00'::time)::text FROM %s WHERE pub_date = $1`,
		s.table,
	)

	var watermark string
	err := s.db.QueryRow(ctx, query, date.Format("2006-01-02")).Scan(&watermark)
	if err != nil {
		return "", fmt.Errorf("query max publish time: %w", err)
	}
	return watermark, nil
}

// Close releases the underlying pool.
func (s *ArticleStore) Close() {
	s.db.Close()
}
