package history

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new submission record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO analysis_sessions (id, scores_file, items_file, state, error_message, sheet_count, submitted_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)`

	var errMsg sql.NullString
	if rec.Error != "" {
		errMsg = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.ScoresFile,
		rec.ItemsFile,
		rec.State,
		errMsg,
		rec.SheetCount,
		rec.SubmittedAt,
	)
	return err
}

// Finish records the terminal outcome of a submission.
func (r *PGRepo) Finish(ctx context.Context, id, state, errMsg string, sheetCount int, finishedAt time.Time) error {
	const query = `
UPDATE analysis_sessions
SET state = $2, error_message = $3, sheet_count = $4, finished_at = $5
WHERE id = $1`

	var nullErr sql.NullString
	if errMsg != "" {
		nullErr = sql.NullString{String: errMsg, Valid: true}
	}

	res, err := r.DB.ExecContext(ctx, query, id, state, nullErr, sheetCount, finishedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns a record by id.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Record, error) {
	const query = `
SELECT id, scores_file, items_file, state, error_message, sheet_count, submitted_at, finished_at
FROM analysis_sessions
WHERE id = $1`

	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns up to limit records, most recent first.
func (r *PGRepo) List(ctx context.Context, limit int) ([]Record, error) {
	const query = `
SELECT id, scores_file, items_file, state, error_message, sheet_count, submitted_at, finished_at
FROM analysis_sessions
ORDER BY submitted_at DESC
LIMIT $1`

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var errMsg sql.NullString
	var finishedAt sql.NullTime
	err := row.Scan(
		&rec.ID,
		&rec.ScoresFile,
		&rec.ItemsFile,
		&rec.State,
		&errMsg,
		&rec.SheetCount,
		&rec.SubmittedAt,
		&finishedAt,
	)
	if err != nil {
		return Record{}, err
	}
	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}
