package statuses

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"keygate/internal/common"
	"keygate/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestSet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	updated := time.Now()
	mock.ExpectExec(`DELETE\s+FROM\s+status`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+status\s*\(status,\s*message,\s*eta,\s*updated_by\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+updated_at`).
		WithArgs("testing", "rolling restart", "30m", "adm-1").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(updated))

	rec := &models.StatusRecord{
		Status:    models.StatusTesting,
		Message:   "rolling restart",
		ETA:       "30m",
		UpdatedBy: "adm-1",
	}
	if err := repo.Set(context.Background(), rec); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if !rec.UpdatedAt.Equal(updated) {
		t.Fatalf("updated_at not populated: %v", rec.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSet_DeleteError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+status`).
		WillReturnError(errors.New("db down"))

	err := repo.Set(context.Background(), &models.StatusRecord{Status: models.StatusOnline})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetLatest_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+status,\s*message,\s*eta,\s*updated_by,\s*updated_at\s+FROM\s+status\s+ORDER\s+BY\s+updated_at\s+DESC\s+LIMIT\s+1`

	updated := time.Now()
	rows := sqlmock.NewRows([]string{"status", "message", "eta", "updated_by", "updated_at"}).
		AddRow("offline", "maintenance", "1h", "adm-1", updated)
	mock.ExpectQuery(q).WillReturnRows(rows)

	got, err := repo.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("GetLatest error: %v", err)
	}
	if got.Status != models.StatusOffline || got.Message != "maintenance" || got.ETA != "1h" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestGetLatest_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+status,.*FROM\s+status`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLatest(context.Background())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
