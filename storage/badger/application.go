package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/storage"
)

// AddApplication stores a new application and assigns its ID.
func (s *Store) AddApplication(ctx context.Context, app *core.JobApplication) (*core.JobApplication, error) {
	if err := core.ValidateApplication(app); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	var result *core.JobApplication
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		record := *app
		id, err := s.nextID(applicationIDSeq)
		if err != nil {
			return err
		}
		record.Id = id
		record.InsertedAt = now()
		record.UpdatedAt = record.InsertedAt

		if err := tx.Set(makeApplicationKey(id), storage.MarshalApplication(&record)); err != nil {
			return err
		}
		if err := tx.Set(makeApplicationUserKey(record.ProfileID, id), storage.MarshalID(id)); err != nil {
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

// GetApplication retrieves a single application by ID.
func (s *Store) GetApplication(ctx context.Context, id core.ID) (*core.JobApplication, error) {
	var result *core.JobApplication
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readApplication(tx, id)
		return err
	})
	return result, err
}

// GetApplicationsForUser returns the applications of a profile ordered by ID.
func (s *Store) GetApplicationsForUser(ctx context.Context, profileID string) ([]*core.JobApplication, error) {
	var results []*core.JobApplication
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		ids, err := scanPrefix(tx, makePartialApplicationUserKey(profileID), func(val []byte) (*core.ID, error) {
			id, err := storage.UnmarshalID(val)
			return &id, err
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			app, err := readApplication(tx, *id)
			if err != nil {
				return err
			}
			results = append(results, app)
		}
		return nil
	})
	return results, err
}

// ListApplicationProfiles returns every profile owning at least one application,
// in lexical order.
func (s *Store) ListApplicationProfiles(ctx context.Context) ([]string, error) {
	var profiles []string
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(applicationUserPfx + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			profile, err := profileFromApplicationUserKey(iter.Item().Key())
			if err != nil {
				return fmt.Errorf("%w: application index key: %w", storage.ErrSerializationFailed, err)
			}
			if len(profiles) == 0 || profiles[len(profiles)-1] != profile {
				profiles = append(profiles, profile)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Escaping can reorder profiles that contain reserved characters.
	sort.Strings(profiles)
	return profiles, nil
}

// UpdateApplicationStatus raises the status order of an application. Lowering it is
// refused with storage.ErrConflict; an equal order only replaces the notes.
func (s *Store) UpdateApplicationStatus(ctx context.Context, id core.ID, statusOrder int, notes *string) (*core.JobApplication, error) {
	var result *core.JobApplication
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		app, err := readApplication(tx, id)
		if err != nil {
			return err
		}
		if statusOrder < app.StatusOrder {
			return fmt.Errorf("%w: status order of application %d cannot go from %d to %d",
				storage.ErrConflict, id, app.StatusOrder, statusOrder)
		}
		app.StatusOrder = statusOrder
		if notes != nil {
			app.Notes = notes
		}
		app.UpdatedAt = now()
		if err := tx.Set(makeApplicationKey(id), storage.MarshalApplication(app)); err != nil {
			return err
		}
		result = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func readApplication(tx *badger.Txn, id core.ID) (*core.JobApplication, error) {
	app, err := readValue(tx, makeApplicationKey(id), storage.UnmarshalApplication)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("%w: application %d", storage.ErrNotFound, id)
	}
	return app, nil
}
