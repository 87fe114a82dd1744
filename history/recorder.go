package history

import (
	"context"
	"time"
)

// OpType tags a history entry with the operation that produced it.
type OpType string

const (
	OpSearch           OpType = "search"
	OpStandardize      OpType = "standardize"
	OpBatchStandardize OpType = "batch_standardize"
	OpFuzzyMatch       OpType = "fuzzy_match"
)

// Entry is one recorded operation.
type Entry struct {
	Id           uint64    `json:"id"`
	Query        string    `json:"query"`
	Type         OpType    `json:"type"`
	ResultsCount uint32    `json:"results_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// Recorder persists operation history. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// Record appends an entry. The entry's Id and Timestamp are
	// assigned by the recorder.
	Record(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// ByType returns up to limit entries of one operation type,
	// newest first.
	ByType(ctx context.Context, op OpType, limit int) ([]Entry, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Size returns the number of stored entries.
	Size(ctx context.Context) (int, error)

	// Close releases the recorder's resources.
	Close() error
}

// Noop discards every entry. Used when history is disabled.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) Record(context.Context, Entry) error                  { return nil }
func (Noop) Recent(context.Context, int) ([]Entry, error)         { return nil, nil }
func (Noop) ByType(context.Context, OpType, int) ([]Entry, error) { return nil, nil }
func (Noop) Clear(context.Context) error                          { return nil }
func (Noop) Size(context.Context) (int, error)                    { return 0, nil }
func (Noop) Close() error                                         { return nil }
