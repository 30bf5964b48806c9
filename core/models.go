package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Stream entry sources.
const (
	SourceManual     = "manual"
	SourceDiscovered = "discovered"
)

// EntryStatusNew is the status of a freshly surfaced stream entry.
const EntryStatusNew = "new"

// DefaultSalaryCurrency is stored for jobs that were never given a currency.
const DefaultSalaryCurrency = "USD"

// Company is an employer. Domain is the preferred dedup key and is unique when present.
// A company may exist as a stub holding only a domain or only a name.
type Company struct {
	Id         ID
	Name       *string
	Domain     *string
	Industry   *string
	Size       *string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// CompanyFromDomain builds an unsaved company stub identified by its domain.
func CompanyFromDomain(domain string) *Company {
	d := NormalizeDomain(domain)
	return &Company{Domain: &d}
}

// CompanyFromName builds an unsaved company stub identified by its name only.
func CompanyFromName(name string) *Company {
	return &Company{Name: Ptr(CollapseSpace(name))}
}

// HasDomain reports whether the company carries a non-empty domain.
func (c *Company) HasDomain() bool {
	return c != nil && c.Domain != nil && *c.Domain != ""
}

// Key returns the key used to match jobs to this company.
// A stored id wins, then the domain, then the normalized name; an empty string means
// the company cannot be keyed.
func (c *Company) Key() string {
	if c == nil {
		return ""
	}
	if c.Id != 0 {
		return "id:" + strconv.FormatUint(uint64(c.Id), 10)
	}
	if c.HasDomain() {
		return "domain:" + NormalizeDomain(*c.Domain)
	}
	if c.Name != nil && NormalizeName(*c.Name) != "" {
		return "name:" + NormalizeName(*c.Name)
	}
	return ""
}

// Merge overlays the populated fields of update onto c and returns the result.
// Fields absent from update keep their current value. The identity of c is kept.
func (c *Company) Merge(update *Company) *Company {
	merged := *c
	if update == nil {
		return &merged
	}
	merged.Name = firstSet(update.Name, c.Name)
	merged.Domain = firstSet(update.Domain, c.Domain)
	merged.Industry = firstSet(update.Industry, c.Industry)
	merged.Size = firstSet(update.Size, c.Size)
	return &merged
}

// Job is a normalized posting. A nil CompanyId marks an orphaned job.
type Job struct {
	Id               ID
	CompanyId        *ID
	Title            string
	Description      *string
	Location         *string
	URL              *string
	Qualifications   []string
	Responsibilities []string
	SalaryMin        *float64
	SalaryMax        *float64
	SalaryCurrency   *string
	Status           *string // derived, maintained by the status workflow
	DedupKey         string
	InsertedAt       time.Time
	UpdatedAt        time.Time
}

// ApplyDefaults fills the defaults of a job about to be stored. Values already set,
// including an explicit empty currency, are kept.
func (j *Job) ApplyDefaults() {
	if j.SalaryCurrency == nil {
		j.SalaryCurrency = Ptr(DefaultSalaryCurrency)
	}
}

// Merge overlays update onto j. Identity, timestamps and the derived status are kept;
// absent fields and empty lists in update never erase existing values.
func (j *Job) Merge(update *Job) *Job {
	merged := *j
	if update == nil {
		return &merged
	}
	if update.Title != "" {
		merged.Title = update.Title
	}
	if update.CompanyId != nil {
		merged.CompanyId = update.CompanyId
	}
	merged.Description = firstSet(update.Description, j.Description)
	merged.Location = firstSet(update.Location, j.Location)
	merged.URL = firstSet(update.URL, j.URL)
	merged.SalaryMin = firstSet(update.SalaryMin, j.SalaryMin)
	merged.SalaryMax = firstSet(update.SalaryMax, j.SalaryMax)
	merged.SalaryCurrency = firstSet(update.SalaryCurrency, j.SalaryCurrency)
	if len(update.Qualifications) > 0 {
		merged.Qualifications = update.Qualifications
	}
	if len(update.Responsibilities) > 0 {
		merged.Responsibilities = update.Responsibilities
	}
	return &merged
}

// ExtractedJobData is the model's structured reading of a posting.
// It is never persisted directly; the resolver turns it into a Company/Job pair.
type ExtractedJobData struct {
	Title            string   `json:"title"`
	CompanyName      *string  `json:"company_name,omitempty"`
	CompanyDomain    *string  `json:"company_domain,omitempty"`
	Location         *string  `json:"location,omitempty"`
	Description      *string  `json:"description,omitempty"`
	URL              *string  `json:"url,omitempty"`
	Qualifications   []string `json:"qualifications,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	SalaryMin        *float64 `json:"salary_min,omitempty"`
	SalaryMax        *float64 `json:"salary_max,omitempty"`
	SalaryCurrency   *string  `json:"salary_currency,omitempty"`
}

// MinimalJobData builds a degraded but valid extraction carrying only a title.
func MinimalJobData(title string) *ExtractedJobData {
	return &ExtractedJobData{Title: CollapseSpace(title)}
}

// Experience is one position on a résumé.
type Experience struct {
	Title      *string  `json:"title,omitempty"`
	Company    *string  `json:"company,omitempty"`
	StartDate  *string  `json:"start_date,omitempty"`
	EndDate    *string  `json:"end_date,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Education is one degree or program on a résumé.
type Education struct {
	Institution    *string `json:"institution,omitempty"`
	Degree         *string `json:"degree,omitempty"`
	Field          *string `json:"field,omitempty"`
	GraduationYear *string `json:"graduation_year,omitempty"`
}

// ExtractedResumeData is the model's structured reading of a résumé.
type ExtractedResumeData struct {
	Name       *string      `json:"name,omitempty"`
	Email      *string      `json:"email,omitempty"`
	Phone      *string      `json:"phone,omitempty"`
	Location   *string      `json:"location,omitempty"`
	Summary    *string      `json:"summary,omitempty"`
	Skills     []string     `json:"skills,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Education  []Education  `json:"education,omitempty"`
}

// StructuredResume is a parsed résumé owned by a profile.
type StructuredResume struct {
	ProfileID   string
	DocumentRef string
	Data        ExtractedResumeData
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// JobStreamEntry records one occurrence of a job being surfaced to one profile.
// Entries are append-only.
type JobStreamEntry struct {
	Id         ID
	JobId      ID
	ProfileID  string
	Source     string
	Status     string
	InsertedAt time.Time
}

// JobApplication tracks a profile's application to a job.
// StatusOrder encodes the pipeline stage and never decreases once set.
type JobApplication struct {
	Id          ID
	ProfileID   string
	JobId       ID
	StatusOrder int
	Notes       *string
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// Posting is the unit persisted by one ingestion: an optional company, the job,
// and an optional stream entry, written together.
type Posting struct {
	Company    *Company
	Job        *Job
	Entry      *JobStreamEntry
	JobCreated bool // set by the store
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func firstSet[T any](preferred, fallback *T) *T {
	if preferred != nil {
		return preferred
	}
	return fallback
}
