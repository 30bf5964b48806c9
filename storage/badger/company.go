package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/storage"
)

// GetCompanyByDomain looks a company up by its normalized domain.
func (s *Store) GetCompanyByDomain(ctx context.Context, domain string) (*core.Company, error) {
	domain = core.NormalizeDomain(domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", storage.ErrInvalidQuery)
	}
	var result *core.Company
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		id, err := readID(tx, makeCompanyDomainKey(domain))
		if err != nil {
			return err
		}
		if id == 0 {
			return storage.ErrNotFound
		}
		result, err = readCompany(tx, id)
		return err
	})
	return result, err
}

// FindCompaniesByName returns every company sharing the normalized name, ordered by ID.
func (s *Store) FindCompaniesByName(ctx context.Context, name string) ([]*core.Company, error) {
	if core.NormalizeName(name) == "" {
		return nil, fmt.Errorf("%w: empty name", storage.ErrInvalidQuery)
	}
	results := make([]*core.Company, 0)
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		ids, err := scanPrefix(tx, makePartialCompanyNameKey(name), func(val []byte) (*core.ID, error) {
			id, err := storage.UnmarshalID(val)
			return &id, err
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			company, err := readCompany(tx, *id)
			if err != nil {
				return err
			}
			results = append(results, company)
		}
		return nil
	})
	return results, err
}

// GetCompany retrieves a single company by ID.
func (s *Store) GetCompany(ctx context.Context, id core.ID) (*core.Company, error) {
	var result *core.Company
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readCompany(tx, id)
		return err
	})
	return result, err
}

// UpsertCompany creates or merges a company.
func (s *Store) UpsertCompany(ctx context.Context, company *core.Company) (*core.Company, error) {
	var result *core.Company
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = s.upsertCompany(tx, company)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// upsertCompany never mutates in, so a replayed transaction starts from the same input.
func (s *Store) upsertCompany(tx *badger.Txn, in *core.Company) (*core.Company, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: company is nil", storage.ErrInvalidQuery)
	}
	candidate := *in
	if candidate.Domain != nil {
		if d := core.NormalizeDomain(*candidate.Domain); d != "" {
			candidate.Domain = &d
		} else {
			candidate.Domain = nil
		}
	}

	existing, err := matchCompany(tx, &candidate)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if candidate.Key() == "" {
			return nil, fmt.Errorf("%w: company has neither domain nor name", storage.ErrInvalidQuery)
		}
		id, err := s.nextID(companyIDSeq)
		if err != nil {
			return nil, err
		}
		candidate.Id = id
		candidate.InsertedAt = now()
		candidate.UpdatedAt = candidate.InsertedAt
		if err := writeCompany(tx, nil, &candidate); err != nil {
			return nil, err
		}
		return &candidate, nil
	}

	merged := existing.Merge(&candidate)
	merged.UpdatedAt = now()
	if err := writeCompany(tx, existing, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// matchCompany finds the stored company the candidate refers to: by ID, then by domain,
// then by the domainless stub registered for its name. Returns nil if none matches.
func matchCompany(tx *badger.Txn, candidate *core.Company) (*core.Company, error) {
	if candidate.Id != 0 {
		return readCompany(tx, candidate.Id)
	}
	var indexKey []byte
	switch {
	case candidate.HasDomain():
		indexKey = makeCompanyDomainKey(*candidate.Domain)
	case candidate.Name != nil && core.NormalizeName(*candidate.Name) != "":
		indexKey = makeCompanyStubKey(*candidate.Name)
	default:
		return nil, nil
	}
	id, err := readID(tx, indexKey)
	if err != nil || id == 0 {
		return nil, err
	}
	return readCompany(tx, id)
}

// writeCompany stores c and keeps the domain, name and stub indices in step with the
// previous version old (nil for a new company).
func writeCompany(tx *badger.Txn, old, c *core.Company) error {
	idValue := storage.MarshalID(c.Id)

	if c.HasDomain() {
		domainKey := makeCompanyDomainKey(*c.Domain)
		owner, err := readID(tx, domainKey)
		if err != nil {
			return err
		}
		if owner != 0 && owner != c.Id {
			return fmt.Errorf("%w: domain %s belongs to company %d", storage.ErrConflict, *c.Domain, owner)
		}
		if err := tx.Set(domainKey, idValue); err != nil {
			return err
		}
	}
	if old.HasDomain() && (!c.HasDomain() || core.NormalizeDomain(*old.Domain) != core.NormalizeDomain(*c.Domain)) {
		if err := tx.Delete(makeCompanyDomainKey(*old.Domain)); err != nil {
			return err
		}
	}

	oldName, newName := companyName(old), companyName(c)
	if oldName != "" && oldName != newName {
		if err := tx.Delete(makeCompanyNameKey(oldName, c.Id)); err != nil {
			return err
		}
	}
	if newName != "" {
		if err := tx.Set(makeCompanyNameKey(newName, c.Id), idValue); err != nil {
			return err
		}
	}

	oldStub, newStub := stubName(old), stubName(c)
	if oldStub != "" && oldStub != newStub {
		if err := tx.Delete(makeCompanyStubKey(oldStub)); err != nil {
			return err
		}
	}
	if newStub != "" {
		if err := tx.Set(makeCompanyStubKey(newStub), idValue); err != nil {
			return err
		}
	}

	return tx.Set(makeCompanyKey(c.Id), storage.MarshalCompany(c))
}

func companyName(c *core.Company) string {
	if c == nil || c.Name == nil {
		return ""
	}
	return core.NormalizeName(*c.Name)
}

// stubName is the name under which a domainless company is registered as a stub.
func stubName(c *core.Company) string {
	if c.HasDomain() {
		return ""
	}
	return companyName(c)
}

func readCompany(tx *badger.Txn, id core.ID) (*core.Company, error) {
	company, err := readValue(tx, makeCompanyKey(id), storage.UnmarshalCompany)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company %d", storage.ErrNotFound, id)
	}
	return company, nil
}
