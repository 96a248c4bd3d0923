package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/news"
)

// PostgresStore persists summarized articles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Backend = (*PostgresStore)(nil)

// NewPostgresStore connects, pings and makes sure the schema exists.
func NewPostgresStore(ctx context.Context, connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("postgres article store connected")
	return store, nil
}

// DB exposes the handle so the subscriber repository can share it.
func (ps *PostgresStore) DB() *sql.DB {
	return ps.db
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS summarized_articles (
		id SERIAL PRIMARY KEY,
		category VARCHAR(50) NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		image TEXT,
		content TEXT NOT NULL,
		sent_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_summarized_articles_category ON summarized_articles(category);
	`

	if _, err := ps.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Find(ctx context.Context, category string) ([]news.Article, error) {
	query := `
		SELECT category, title, url, COALESCE(image, ''), content
		FROM summarized_articles
		WHERE category = $1
		ORDER BY sent_at, id
	`

	rows, err := ps.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []news.Article
	for rows.Next() {
		var a news.Article
		if err := rows.Scan(&a.Category, &a.Title, &a.URL, &a.Image, &a.Content); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func (ps *PostgresStore) Insert(ctx context.Context, a news.Article) error {
	query := `
		INSERT INTO summarized_articles (category, title, url, image, content, sent_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW())
	`

	if _, err := ps.db.ExecContext(ctx, query, a.Category, a.Title, a.URL, a.Image, a.Content); err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

func (ps *PostgresStore) DeleteMany(ctx context.Context, category string) (int64, error) {
	result, err := ps.db.ExecContext(ctx, `DELETE FROM summarized_articles WHERE category = $1`, category)
	if err != nil {
		return 0, fmt.Errorf("failed to delete articles: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		logger.Info("purged articles", "category", category, "rows", rows)
	}
	return rows, nil
}

// Close closes the database connection
func (ps *PostgresStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
