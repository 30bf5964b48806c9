package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/storage"
)

// UpsertJob creates or merges a job keyed by its dedup key. The key is always derived
// from the company ID, title and location of job; any DedupKey already set is ignored.
func (s *Store) UpsertJob(ctx context.Context, job *core.Job) (*core.Job, bool, error) {
	var (
		result  *core.Job
		created bool
	)
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		var err error
		result, created, err = s.upsertJob(tx, job)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// GetJob retrieves a single job by ID.
func (s *Store) GetJob(ctx context.Context, id core.ID) (*core.Job, error) {
	var result *core.Job
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readJob(tx, id)
		return err
	})
	return result, err
}

// UpsertPosting writes company, job and stream entry in one transaction.
// The job is attached to the company when it has no company of its own.
func (s *Store) UpsertPosting(ctx context.Context, posting *core.Posting) (*core.Posting, error) {
	if posting == nil || posting.Job == nil {
		return nil, fmt.Errorf("%w: posting has no job", storage.ErrInvalidQuery)
	}
	var result *core.Posting
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		out := &core.Posting{}
		job := *posting.Job

		if posting.Company != nil {
			company, err := s.upsertCompany(tx, posting.Company)
			if err != nil {
				return err
			}
			out.Company = company
			if job.CompanyId == nil {
				id := company.Id
				job.CompanyId = &id
			}
		}

		saved, created, err := s.upsertJob(tx, &job)
		if err != nil {
			return err
		}
		out.Job, out.JobCreated = saved, created

		if posting.Entry != nil {
			entry, err := s.appendStreamEntry(tx, posting.Entry, saved.Id)
			if err != nil {
				return err
			}
			out.Entry = entry
		}

		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetJobStatus updates the derived status of a job.
func (s *Store) SetJobStatus(ctx context.Context, id core.ID, status string) error {
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		job, err := readJob(tx, id)
		if err != nil {
			return err
		}
		job.Status = &status
		job.UpdatedAt = now()
		return tx.Set(makeJobKey(id), storage.MarshalJob(job))
	})
}

// GetStreamEntries returns the stream entries of a profile, oldest first.
func (s *Store) GetStreamEntries(ctx context.Context, profileID string) ([]*core.JobStreamEntry, error) {
	var results []*core.JobStreamEntry
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		results, err = scanPrefix(tx, makePartialStreamEntryKey(profileID), storage.UnmarshalStreamEntry)
		return err
	})
	return results, err
}

func (s *Store) upsertJob(tx *badger.Txn, in *core.Job) (*core.Job, bool, error) {
	if err := core.ValidateJob(in); err != nil {
		return nil, false, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	candidate := *in
	var company *core.Company
	if candidate.CompanyId != nil {
		company = &core.Company{Id: *candidate.CompanyId}
	}
	candidate.DedupKey = core.JobDedupKey(company, candidate.Title, candidate.Location)
	dedupKey := makeJobDedupKey(candidate.DedupKey)

	existingID, err := readID(tx, dedupKey)
	if err != nil {
		return nil, false, err
	}

	if existingID == 0 {
		id, err := s.nextID(jobIDSeq)
		if err != nil {
			return nil, false, err
		}
		candidate.Id = id
		candidate.ApplyDefaults()
		candidate.InsertedAt = now()
		candidate.UpdatedAt = candidate.InsertedAt
		if err := tx.Set(dedupKey, storage.MarshalID(id)); err != nil {
			return nil, false, err
		}
		if err := tx.Set(makeJobKey(id), storage.MarshalJob(&candidate)); err != nil {
			return nil, false, err
		}
		return &candidate, true, nil
	}

	existing, err := readJob(tx, existingID)
	if err != nil {
		return nil, false, err
	}
	merged := existing.Merge(&candidate)
	merged.DedupKey = existing.DedupKey
	merged.ApplyDefaults()
	merged.UpdatedAt = now()
	if err := tx.Set(makeJobKey(merged.Id), storage.MarshalJob(merged)); err != nil {
		return nil, false, err
	}
	return merged, false, nil
}

func (s *Store) appendStreamEntry(tx *badger.Txn, in *core.JobStreamEntry, jobID core.ID) (*core.JobStreamEntry, error) {
	if in.ProfileID == "" {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrEmptyProfile)
	}
	entry := *in
	id, err := s.nextID(streamIDSeq)
	if err != nil {
		return nil, err
	}
	entry.Id = id
	entry.JobId = jobID
	entry.InsertedAt = now()
	if err := tx.Set(makeStreamEntryKey(entry.ProfileID, id), storage.MarshalStreamEntry(&entry)); err != nil {
		return nil, err
	}
	return &entry, nil
}

func readJob(tx *badger.Txn, id core.ID) (*core.Job, error) {
	job, err := readValue(tx, makeJobKey(id), storage.UnmarshalJob)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %d", storage.ErrNotFound, id)
	}
	return job, nil
}
