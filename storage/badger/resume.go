package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/storage"
)

// SaveResume creates or replaces the résumé of a profile, keeping its original
// insertion time.
func (s *Store) SaveResume(ctx context.Context, resume *core.StructuredResume) (*core.StructuredResume, error) {
	if resume == nil || resume.ProfileID == "" {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrEmptyProfile)
	}
	var result *core.StructuredResume
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeResumeKey(resume.ProfileID)
		existing, err := readValue(tx, key, storage.UnmarshalResume)
		if err != nil {
			return err
		}
		record := *resume
		record.UpdatedAt = now()
		record.InsertedAt = record.UpdatedAt
		if existing != nil {
			record.InsertedAt = existing.InsertedAt
		}
		if err := tx.Set(key, storage.MarshalResume(&record)); err != nil {
			return err
		}
		result = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetResume returns the résumé of a profile.
func (s *Store) GetResume(ctx context.Context, profileID string) (*core.StructuredResume, error) {
	var result *core.StructuredResume
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeResumeKey(profileID), storage.UnmarshalResume)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: resume for profile %s", storage.ErrNotFound, profileID)
		}
		return nil
	})
	return result, err
}
