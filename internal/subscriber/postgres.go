package subscriber

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/deusflow/rundown/internal/logger"
)

const subscribersTable = "subscribers"

// PostgresRepository reads subscribers from the subscribers table.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// InitSchema creates the table when missing.
func (r *PostgresRepository) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS subscribers (
		email TEXT PRIMARY KEY,
		id TEXT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		category TEXT,
		categories TEXT[],
		validated BOOLEAN NOT NULL DEFAULT FALSE,
		schema_version INTEGER NOT NULL DEFAULT 1
	);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create subscribers table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Validated(ctx context.Context) ([]Subscriber, error) {
	query, args, err := r.sb.
		Select("COALESCE(id, '')", "first_name", "last_name", "email",
			"COALESCE(category, '')", "categories", "schema_version").
		From(subscribersTable).
		Where(sq.Eq{"validated": true}).
		OrderBy("email").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}

	var records []Record
	for rows.Next() {
		var rec Record
		var cats pq.StringArray
		if err := rows.Scan(&rec.UUID, &rec.FirstName, &rec.LastName, &rec.Email,
			&rec.Category, &cats, &rec.SchemaVersion); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		rec.Categories = []string(cats)
		rec.Validated = true
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close rows: %w", err)
	}

	out := make([]Subscriber, 0, len(records))
	for _, rec := range records {
		migrated, changed := Migrate(rec)
		if changed {
			if err := r.writeBack(ctx, migrated); err != nil {
				logger.Error("failed to write migrated subscriber", err, "email", rec.Email)
			}
		}
		out = append(out, migrated.ToSubscriber())
	}
	return out, nil
}

func (r *PostgresRepository) writeBack(ctx context.Context, rec Record) error {
	query, args, err := r.sb.
		Update(subscribersTable).
		Set("id", rec.UUID).
		Set("categories", pq.StringArray(rec.Categories)).
		Set("category", nil).
		Set("schema_version", rec.SchemaVersion).
		Where(sq.Eq{"email": rec.Email}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// PruneUnvalidated deletes records that never confirmed their address.
func (r *PostgresRepository) PruneUnvalidated(ctx context.Context) (int, error) {
	query, args, err := r.sb.
		Delete(subscribersTable).
		Where(sq.Eq{"validated": false}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune subscribers: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
