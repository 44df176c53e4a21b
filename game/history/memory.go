package history

import (
	"context"
	"sync"
)

// MemoryArchive keeps the newest capacity records in memory
type MemoryArchive struct {
	records  []Record
	capacity int
	closed   bool
	mu       sync.RWMutex
}

// NewMemoryArchive creates an archive holding at most capacity records.
// A non-positive capacity keeps every record.
func NewMemoryArchive(capacity int) *MemoryArchive {
	return &MemoryArchive{capacity: capacity}
}

func (a *MemoryArchive) Save(ctx context.Context, rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArchiveClosed
	}

	rec.Moves = append([]int(nil), rec.Moves...)
	a.records = append(a.records, rec)
	if a.capacity > 0 && len(a.records) > a.capacity {
		a.records = append([]Record(nil), a.records[len(a.records)-a.capacity:]...)
	}
	return nil
}

func (a *MemoryArchive) Recent(ctx context.Context, limit int) ([]Record, error) {
	return a.collect(normalizeLimit(limit), func(Record) bool { return true })
}

func (a *MemoryArchive) ByPlayer(ctx context.Context, username string, limit int) ([]Record, error) {
	return a.collect(normalizeLimit(limit), func(r Record) bool { return r.Involves(username) })
}

func (a *MemoryArchive) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Len returns the number of stored records
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

func (a *MemoryArchive) collect(limit int, keep func(Record) bool) ([]Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, ErrArchiveClosed
	}

	result := make([]Record, 0, limit)
	for i := len(a.records) - 1; i >= 0 && len(result) < limit; i-- {
		if keep(a.records[i]) {
			result = append(result, a.records[i])
		}
	}
	return result, nil
}
