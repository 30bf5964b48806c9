package storage

import (
	"context"

	"github.com/poiesic/jobstream/core"
)

// CompanyRepository provides operations for managing companies.
type CompanyRepository interface {
	// GetCompanyByDomain looks a company up by its normalized domain.
	// Returns ErrNotFound if no company owns the domain.
	GetCompanyByDomain(ctx context.Context, domain string) (*core.Company, error)

	// FindCompaniesByName returns every company whose normalized name equals the
	// normalized form of name. Returns an empty slice, not an error, when none match.
	FindCompaniesByName(ctx context.Context, name string) ([]*core.Company, error)

	// GetCompany retrieves a single company by ID.
	// Returns ErrNotFound if the company doesn't exist.
	GetCompany(ctx context.Context, id core.ID) (*core.Company, error)

	// UpsertCompany creates or merges a company. A company with an ID is merged into the
	// stored record; otherwise it is matched by domain, or by name when it has no domain.
	// Returns ErrConflict if the domain already belongs to another company.
	UpsertCompany(ctx context.Context, company *core.Company) (*core.Company, error)
}

// JobRepository provides operations for managing jobs and job stream entries.
type JobRepository interface {
	// UpsertJob creates or merges a job keyed by its dedup key.
	// The returned flag reports whether a new job was created.
	UpsertJob(ctx context.Context, job *core.Job) (*core.Job, bool, error)

	// GetJob retrieves a single job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id core.ID) (*core.Job, error)

	// UpsertPosting writes the company (if any), the job and the stream entry (if any)
	// in a single transaction. Either everything is written or nothing is.
	UpsertPosting(ctx context.Context, posting *core.Posting) (*core.Posting, error)

	// SetJobStatus updates the derived status of a job.
	// Returns ErrNotFound if the job doesn't exist.
	SetJobStatus(ctx context.Context, id core.ID, status string) error

	// GetStreamEntries returns the stream entries of a profile, oldest first.
	GetStreamEntries(ctx context.Context, profileID string) ([]*core.JobStreamEntry, error)
}

// ApplicationRepository provides operations for managing job applications.
type ApplicationRepository interface {
	// AddApplication stores a new application and assigns its ID.
	AddApplication(ctx context.Context, app *core.JobApplication) (*core.JobApplication, error)

	// GetApplication retrieves a single application by ID.
	// Returns ErrNotFound if the application doesn't exist.
	GetApplication(ctx context.Context, id core.ID) (*core.JobApplication, error)

	// GetApplicationsForUser returns the applications of a profile ordered by ID.
	GetApplicationsForUser(ctx context.Context, profileID string) ([]*core.JobApplication, error)

	// ListApplicationProfiles returns every profile that owns at least one application.
	ListApplicationProfiles(ctx context.Context) ([]string, error)

	// UpdateApplicationStatus raises the status order of an application and replaces its
	// notes when notes is non-nil. A lower status order is refused with ErrConflict.
	UpdateApplicationStatus(ctx context.Context, id core.ID, statusOrder int, notes *string) (*core.JobApplication, error)
}

// ResumeRepository stores one structured résumé per profile.
type ResumeRepository interface {
	// SaveResume creates or replaces the résumé of resume.ProfileID.
	SaveResume(ctx context.Context, resume *core.StructuredResume) (*core.StructuredResume, error)

	// GetResume returns the résumé of a profile.
	// Returns ErrNotFound if the profile has none.
	GetResume(ctx context.Context, profileID string) (*core.StructuredResume, error)
}

// Store combines every record repository over one backend.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	CompanyRepository
	JobRepository
	ApplicationRepository
	ResumeRepository

	// Close releases the store and its backend.
	Close() error
}

// ObjectStore reads raw artifacts such as uploaded résumés and discovered postings.
type ObjectStore interface {
	// FetchRawDocument returns the bytes stored under ref.
	// Returns ErrNotFound if nothing is stored there.
	FetchRawDocument(ctx context.Context, ref string) ([]byte, error)

	// List returns the refs stored under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
