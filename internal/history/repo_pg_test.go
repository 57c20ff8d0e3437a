package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	rec := Record{
		ID:          "s1",
		ScoresFile:  "scores.xlsx",
		ItemsFile:   "items.xlsx",
		State:       "submitting",
		SheetCount:  0,
		SubmittedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analysis_sessions").
		WithArgs(rec.ID, rec.ScoresFile, rec.ItemsFile, rec.State, nil, rec.SheetCount, rec.SubmittedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFinish(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	finished := time.Now().UTC()

	mock.ExpectExec("UPDATE analysis_sessions").
		WithArgs("s1", "failed", "analysis service unreachable", 0, finished).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Finish(context.Background(), "s1", "failed", "analysis service unreachable", 0, finished); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFinishNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	finished := time.Now().UTC()

	mock.ExpectExec("UPDATE analysis_sessions").
		WithArgs("missing", "succeeded", nil, 2, finished).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Finish(context.Background(), "missing", "succeeded", "", 2, finished)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Finish: %v", err)
	}
}

func TestPGRepoGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	submitted := time.Now().UTC()
	finished := submitted.Add(time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "scores_file", "items_file", "state", "error_message", "sheet_count", "submitted_at", "finished_at",
	}).AddRow("s1", "scores.xlsx", "items.xlsx", "succeeded", nil, 2, submitted, finished)

	mock.ExpectQuery("SELECT id, scores_file, items_file").
		WithArgs("s1").
		WillReturnRows(rows)

	rec, err := repo.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.State != "succeeded" || rec.SheetCount != 2 {
		t.Fatalf("record: %+v", rec)
	}
	if rec.Error != "" {
		t.Fatalf("error should be empty, got %q", rec.Error)
	}
	if rec.FinishedAt == nil || !rec.FinishedAt.Equal(finished) {
		t.Fatalf("finished at: %v", rec.FinishedAt)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT id, scores_file, items_file").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "scores_file", "items_file", "state", "error_message", "sheet_count", "submitted_at", "finished_at",
		}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID: %v", err)
	}
}

func TestPGRepoList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "scores_file", "items_file", "state", "error_message", "sheet_count", "submitted_at", "finished_at",
	}).
		AddRow("new", "a.xlsx", "b.xlsx", "failed", "boom", 0, now, nil).
		AddRow("old", "c.xlsx", "d.xlsx", "succeeded", nil, 1, now.Add(-time.Hour), now)

	mock.ExpectQuery("SELECT id, scores_file, items_file").
		WithArgs(10).
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: %d", len(records))
	}
	if records[0].ID != "new" || records[0].Error != "boom" {
		t.Fatalf("first record: %+v", records[0])
	}
}
