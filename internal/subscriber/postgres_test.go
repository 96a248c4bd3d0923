package subscriber

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

const validatedQuery = "SELECT COALESCE(id, ''), first_name, last_name, email, COALESCE(category, ''), categories, schema_version FROM subscribers WHERE validated = $1 ORDER BY email"

var subscriberColumns = []string{"id", "first_name", "last_name", "email", "category", "categories", "schema_version"}

func setupPostgresRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_InitSchema(t *testing.T) {
	repo, mock := setupPostgresRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS subscribers")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepository_ValidatedMigratesV1(t *testing.T) {
	repo, mock := setupPostgresRepository(t)

	rows := sqlmock.NewRows(subscriberColumns).
		AddRow("", "Ada", "Lovelace", "ada@example.com", "World, Arts", nil, 1).
		AddRow("b-1", "Bob", "Stone", "bob@example.com", "", "{us}", 2)
	mock.ExpectQuery(regexp.QuoteMeta(validatedQuery)).
		WithArgs(true).
		WillReturnRows(rows)

	adaID := IDForEmail("ada@example.com")
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscribers SET id = $1, categories = $2, category = $3, schema_version = $4 WHERE email = $5")).
		WithArgs(adaID, sqlmock.AnyArg(), nil, CurrentVersion, "ada@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	subs, err := repo.Validated(context.Background())
	if err != nil {
		t.Fatalf("Validated: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscribers, got %d", len(subs))
	}

	ada := subs[0]
	if ada.ID != adaID || !reflect.DeepEqual(ada.Categories, []string{"world", "arts"}) || !ada.Validated {
		t.Errorf("v1 record not migrated: %+v", ada)
	}
	bob := subs[1]
	if bob.ID != "b-1" || !reflect.DeepEqual(bob.Categories, []string{"us"}) {
		t.Errorf("v2 record changed: %+v", bob)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepository_WriteBackFailureKeepsSubscriber(t *testing.T) {
	repo, mock := setupPostgresRepository(t)

	rows := sqlmock.NewRows(subscriberColumns).
		AddRow("", "Ada", "Lovelace", "ada@example.com", "business", nil, 1)
	mock.ExpectQuery(regexp.QuoteMeta(validatedQuery)).WithArgs(true).WillReturnRows(rows)
	mock.ExpectExec("UPDATE subscribers").WillReturnError(errors.New("read-only transaction"))

	subs, err := repo.Validated(context.Background())
	if err != nil {
		t.Fatalf("Validated: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != IDForEmail("ada@example.com") {
		t.Errorf("subscriber should still be delivered with a derived id: %+v", subs)
	}
}

func TestPostgresRepository_ValidatedQueryError(t *testing.T) {
	repo, mock := setupPostgresRepository(t)

	mock.ExpectQuery("FROM subscribers").WillReturnError(errors.New("connection refused"))

	if _, err := repo.Validated(context.Background()); err == nil {
		t.Fatal("expected query error")
	}
}

func TestPostgresRepository_PruneUnvalidated(t *testing.T) {
	repo, mock := setupPostgresRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subscribers WHERE validated = $1")).
		WithArgs(false).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.PruneUnvalidated(context.Background())
	if err != nil {
		t.Fatalf("PruneUnvalidated: %v", err)
	}
	if n != 3 {
		t.Errorf("pruned %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
