// Package resolve reconciles extracted postings with the companies and jobs already known
// to the store.
//
// Resolution is read-only. It returns records that are either stored entities enriched
// with the new extraction or unsaved stubs (Id == 0); the store's UpsertPosting assigns
// identities and writes everything in one transaction.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/storage"
)

var (
	// ErrAmbiguousMatch indicates several stored companies share a normalized name.
	// It is logged, never returned: resolution falls back to a name stub.
	ErrAmbiguousMatch = errors.New("ambiguous company match")

	// ErrCompaniesRequired is returned when a company lookup is not provided.
	ErrCompaniesRequired = errors.New("company lookup required")
)

// CompanyLookup is the read side of storage.CompanyRepository the resolver needs.
type CompanyLookup interface {
	GetCompanyByDomain(ctx context.Context, domain string) (*core.Company, error)
	FindCompaniesByName(ctx context.Context, name string) ([]*core.Company, error)
}

// Resolver matches extractions against stored companies. It is safe for concurrent use.
type Resolver struct {
	companies CompanyLookup
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) error {
		r.logger = logger
		return nil
	}
}

// NewResolver creates a resolver over companies.
func NewResolver(companies CompanyLookup, opts ...Option) (*Resolver, error) {
	if companies == nil {
		return nil, ErrCompaniesRequired
	}
	r := &Resolver{
		companies: companies,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "resolver")
	return r, nil
}

// ResolveCompany finds the company an extraction refers to. The domain is tried first,
// then the normalized name; when neither matches an unsaved stub is returned. Returns
// nil, nil when the extraction names no company at all.
func (r *Resolver) ResolveCompany(ctx context.Context, data *core.ExtractedJobData) (*core.Company, error) {
	if data == nil {
		return nil, nil
	}
	domain := ""
	if data.CompanyDomain != nil {
		domain = core.NormalizeDomain(*data.CompanyDomain)
	}
	name := ""
	if data.CompanyName != nil {
		name = core.CollapseSpace(*data.CompanyName)
	}
	if domain == "" && core.NormalizeName(name) == "" {
		return nil, nil
	}

	if domain != "" {
		existing, err := r.companies.GetCompanyByDomain(ctx, domain)
		switch {
		case err == nil:
			return fillName(existing, name), nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("look up company domain %s: %w", domain, err)
		}
	}

	stub := newStub(name, domain)
	if core.NormalizeName(name) == "" {
		return stub, nil
	}

	candidates, err := r.companies.FindCompaniesByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up company name %q: %w", name, err)
	}
	switch len(candidates) {
	case 0:
		return stub, nil
	case 1:
		candidate := candidates[0]
		if domain == "" {
			return candidate, nil
		}
		if candidate.HasDomain() {
			// Same name, different domain: a different employer.
			return stub, nil
		}
		return candidate.Merge(&core.Company{Domain: &domain}), nil
	default:
		r.logger.Warn("several companies share a name, using a name stub",
			"err", ErrAmbiguousMatch, "name", name, "candidates", len(candidates))
		return stub, nil
	}
}

// ResolveJob builds the job for an extraction. CompanyId is set when company is already
// stored; the store fills it in for stubs. A missing SalaryCurrency stays nil so a
// re-ingestion never replaces a stored currency; the store defaults it on creation.
func (r *Resolver) ResolveJob(data *core.ExtractedJobData, company *core.Company) *core.Job {
	job := &core.Job{
		Title:            core.CollapseSpace(data.Title),
		Description:      trimmed(data.Description),
		URL:              trimmed(data.URL),
		Qualifications:   cleanList(data.Qualifications),
		Responsibilities: cleanList(data.Responsibilities),
		SalaryMin:        data.SalaryMin,
		SalaryMax:        data.SalaryMax,
	}
	if data.Location != nil {
		if loc := core.NormalizeLocation(*data.Location); loc != "" {
			job.Location = &loc
		}
	}
	if job.SalaryMin != nil && job.SalaryMax != nil && *job.SalaryMin > *job.SalaryMax {
		job.SalaryMin, job.SalaryMax = job.SalaryMax, job.SalaryMin
	}

	if data.SalaryCurrency != nil {
		job.SalaryCurrency = core.Ptr(strings.ToUpper(strings.TrimSpace(*data.SalaryCurrency)))
	}

	if company != nil && company.Id != 0 {
		id := company.Id
		job.CompanyId = &id
	}
	job.DedupKey = core.JobDedupKey(company, job.Title, job.Location)
	return job
}

// Resolve runs both steps and returns the posting ready for storage.
func (r *Resolver) Resolve(ctx context.Context, data *core.ExtractedJobData) (*core.Posting, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	company, err := r.ResolveCompany(ctx, data)
	if err != nil {
		return nil, err
	}
	return &core.Posting{Company: company, Job: r.ResolveJob(data, company)}, nil
}

func newStub(name, domain string) *core.Company {
	stub := &core.Company{}
	if name != "" {
		stub.Name = &name
	}
	if domain != "" {
		stub.Domain = &domain
	}
	return stub
}

// fillName gives a stored company a name when it has none. A known name is never
// replaced by the model's spelling.
func fillName(company *core.Company, name string) *core.Company {
	if name == "" || (company.Name != nil && *company.Name != "") {
		return company
	}
	return company.Merge(&core.Company{Name: &name})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if item = core.CollapseSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
