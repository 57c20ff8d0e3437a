package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo, used when no database
// is configured.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Record)}
}

// Create stores a new record.
func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[rec.ID] = rec
	return nil
}

// Finish records the terminal outcome of a submission.
func (r *MemoryRepo) Finish(ctx context.Context, id, state, errMsg string, sheetCount int, finishedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	rec.State = state
	rec.Error = errMsg
	rec.SheetCount = sheetCount
	rec.FinishedAt = &finishedAt
	r.data[id] = rec
	return nil
}

// GetByID returns a record by id.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns up to limit records, most recent first.
func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.data))
	for _, rec := range r.data {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
