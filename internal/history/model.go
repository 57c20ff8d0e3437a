// Package history records past submission attempts and their terminal
// outcomes, so a user can see what was analyzed and when.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("not found")

// Record is one submission attempt as stored.
type Record struct {
	ID          string
	ScoresFile  string
	ItemsFile   string
	State       string
	Error       string
	SheetCount  int
	SubmittedAt time.Time
	FinishedAt  *time.Time
}

// Repo stores submission records.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	Finish(ctx context.Context, id, state, errMsg string, sheetCount int, finishedAt time.Time) error
	GetByID(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}
