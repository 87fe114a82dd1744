package history

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	defaultMaxEntries        = 1000
	defaultSequenceBandwidth = 100

	entryPrefix = "oprec:"
	entryIDSeq  = "oprecseq"
)

// Store is a BadgerDB-backed Recorder. Entries beyond the configured
// cap are evicted oldest first on append.
type Store struct {
	db         *badger.DB
	idSeq      *badger.Sequence
	maxEntries int
	logger     *slog.Logger
}

var _ Recorder = (*Store)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithMaxEntries caps the number of retained entries.
// Default is 1000.
func WithMaxEntries(max int) StoreOption {
	return func(s *Store) error {
		if max > 0 {
			s.maxEntries = max
		}
		return nil
	}
}

// WithStoreLogger sets a custom logger.
// Default is slog.Default().
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// Open opens a history store at the given path. An empty path with
// inMemory true opens an ephemeral in-memory store. The directory is
// created if it does not exist.
func Open(filePath string, inMemory bool, opts ...StoreOption) (*Store, error) {
	var badgerOpts badger.Options

	if inMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		badgerOpts = badger.DefaultOptions(filePath)
	}

	s := &Store{
		maxEntries: defaultMaxEntries,
		logger:     slog.Default().With("component", "history"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	badgerOpts.Logger = &badgerLoggerAdapter{logger: s.logger}
	badgerOpts.Compression = options.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	s.db = db

	idSeq, err := db.GetSequence([]byte(entryIDSeq), defaultSequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.idSeq = idSeq

	return s, nil
}

// Close releases the ID sequence and closes the database.
func (s *Store) Close() error {
	if err := s.idSeq.Release(); err != nil {
		s.logger.Warn("failed to release history sequence", "error", err)
	}
	return s.db.Close()
}

// makeEntryKey generates a key for an entry by ID. IDs are written in
// BigEndian order so lexicographic iteration follows insertion order.
func makeEntryKey(id uint64) []byte {
	prefixBytes := []byte(entryPrefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], id)
	return buf
}

// Record appends an entry, assigning its ID, and evicts the oldest
// entries past the retention cap.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nextID, err := s.idSeq.Next()
	if err != nil {
		return err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = s.idSeq.Next()
		if err != nil {
			return err
		}
	}
	entry.Id = nextID
	entry.Timestamp = entry.Timestamp.UTC()

	return s.db.Update(func(tx *badger.Txn) error {
		if err := tx.Set(makeEntryKey(entry.Id), MarshalEntry(entry)); err != nil {
			return err
		}
		return s.evictOldest(tx)
	})
}

// evictOldest deletes entries beyond maxEntries, oldest first.
func (s *Store) evictOldest(tx *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(entryPrefix)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	if len(keys) <= s.maxEntries {
		return nil
	}
	for _, key := range keys[:len(keys)-s.maxEntries] {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.scan(ctx, limit, func(Entry) bool { return true })
}

// ByType returns up to limit entries of one operation type, newest first.
func (s *Store) ByType(ctx context.Context, op OpType, limit int) ([]Entry, error) {
	return s.scan(ctx, limit, func(e Entry) bool { return e.Type == op })
}

// scan walks entries newest first, keeping those accepted by keep.
func (s *Store) scan(ctx context.Context, limit int, keep func(Entry) bool) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMaxEntries
	}

	var entries []Entry
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the highest possible ID so reverse iteration
		// starts at the newest entry.
		seek := makeEntryKey(^uint64(0))
		for iter.Seek(seek); iter.Valid() && len(entries) < limit; iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				entry, err := UnmarshalEntry(val)
				if err != nil {
					return err
				}
				if keep(entry) {
					entries = append(entries, entry)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Clear removes all entries. The ID sequence keeps advancing.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Size returns the number of stored entries.
func (s *Store) Size(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
