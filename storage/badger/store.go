package badger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/storage"
)

// Store implements storage.Store on BadgerDB. Writes use optimistic transactions that
// are replayed on conflict, which serializes concurrent upserts of the same key.
type Store struct {
	backend *Backend
	ownsDB  bool

	// mu guards seqs; allocations hold it shared so Close waits for them.
	mu   sync.RWMutex
	seqs map[string]*badger.Sequence
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a Store over an open backend. The caller keeps ownership of the backend.
func NewStore(backend *Backend) (*Store, error) {
	s := &Store{
		backend: backend,
		seqs:    make(map[string]*badger.Sequence),
	}
	for _, name := range []string{companyIDSeq, jobIDSeq, streamIDSeq, applicationIDSeq} {
		seq, err := backend.GetSequence(name)
		if err != nil {
			s.releaseSequences()
			return nil, err
		}
		s.seqs[name] = seq
	}
	return s, nil
}

// Open opens (or creates) a store at path. Closing the store closes the database.
func Open(path string) (*Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return ownedStore(backend)
}

// NewMemoryStore creates an in-memory store for testing.
func NewMemoryStore() (*Store, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return ownedStore(backend)
}

func ownedStore(backend *Backend) (*Store, error) {
	s, err := NewStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Backend exposes the underlying backend.
func (s *Store) Backend() *Backend {
	return s.backend
}

// Close releases the ID sequences and, for stores created by Open or NewMemoryStore,
// the database.
func (s *Store) Close() error {
	err := s.releaseSequences()
	if s.ownsDB {
		err = errors.Join(err, s.backend.Close())
	}
	return err
}

func (s *Store) releaseSequences() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, err)
		}
		delete(s.seqs, name)
	}
	return errors.Join(errs...)
}

// nextID draws from a sequence. IDs are never reused; a replayed transaction simply
// leaves a gap.
func (s *Store) nextID(seqName string) (core.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.seqs[seqName]
	if !ok {
		return 0, fmt.Errorf("%w: store is closed", storage.ErrUnavailable)
	}
	nextID, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// now is truncated to the codec's microsecond resolution so returned records equal
// what a later read decodes.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// readValue fetches key and decodes it. Returns nil, nil if the key doesn't exist.
func readValue[T any](tx *badger.Txn, key []byte, decode func([]byte) (*T, error)) (*T, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var result *T
	err = item.Value(func(val []byte) error {
		var decodeErr error
		result, decodeErr = decode(val)
		return decodeErr
	})
	return result, err
}

// readID reads an index entry holding a single ID. Returns 0 if the key doesn't exist.
func readID(tx *badger.Txn, key []byte) (core.ID, error) {
	id, err := readValue(tx, key, func(val []byte) (*core.ID, error) {
		id, err := storage.UnmarshalID(val)
		return &id, err
	})
	if err != nil || id == nil {
		return 0, err
	}
	return *id, nil
}

// scanPrefix decodes every value stored under prefix in key order.
func scanPrefix[T any](tx *badger.Txn, prefix []byte, decode func([]byte) (*T, error)) ([]*T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var results []*T
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var record *T
		err := iter.Item().Value(func(val []byte) error {
			var err error
			record, err = decode(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	return results, nil
}
