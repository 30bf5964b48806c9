package storage

import (
	"testing"
	"time"

	"github.com/poiesic/jobstream/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalCompany(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	company := &core.Company{
		Id:         7,
		Name:       core.Ptr("Acme"),
		Domain:     core.Ptr("acme.com"),
		Industry:   core.Ptr(""),
		InsertedAt: now,
		UpdatedAt:  now,
	}

	decoded, err := UnmarshalCompany(MarshalCompany(company))
	require.NoError(t, err)
	assert.Equal(t, company, decoded)
	require.NotNil(t, decoded.Industry, "empty value survives")
	assert.Nil(t, decoded.Size, "absent value survives")
}

func TestMarshalUnmarshalJob(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	companyID := core.ID(3)

	tests := []struct {
		name string
		job  *core.Job
	}{
		{
			name: "orphaned minimal job",
			job: &core.Job{
				Id:         1,
				Title:      "Engineer",
				DedupKey:   "(,engineer,)",
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "full job",
			job: &core.Job{
				Id:               2,
				CompanyId:        &companyID,
				Title:            "Software Engineer",
				Description:      core.Ptr("Build things"),
				Location:         core.Ptr("Remote"),
				URL:              core.Ptr("https://acme.com/jobs/1"),
				Qualifications:   []string{"Go", "SQL"},
				Responsibilities: []string{"Ship"},
				SalaryMin:        core.Ptr(120000.0),
				SalaryMax:        core.Ptr(150000.5),
				SalaryCurrency:   core.Ptr(""),
				Status:           core.Ptr("open"),
				DedupKey:         "(id:3,software engineer,remote)",
				InsertedAt:       now,
				UpdatedAt:        now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalJob(MarshalJob(tt.job))
			require.NoError(t, err)
			assert.Equal(t, tt.job, decoded)
		})
	}
}

func TestJobCurrencyAbsentVersusEmpty(t *testing.T) {
	absent, err := UnmarshalJob(MarshalJob(&core.Job{Title: "a"}))
	require.NoError(t, err)
	assert.Nil(t, absent.SalaryCurrency)

	empty, err := UnmarshalJob(MarshalJob(&core.Job{Title: "a", SalaryCurrency: core.Ptr("")}))
	require.NoError(t, err)
	require.NotNil(t, empty.SalaryCurrency)
	assert.Equal(t, "", *empty.SalaryCurrency)
}

func TestMarshalUnmarshalStreamEntry(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &core.JobStreamEntry{
		Id:         5,
		JobId:      2,
		ProfileID:  "user-1",
		Source:     core.SourceDiscovered,
		Status:     "new",
		InsertedAt: now,
	}

	decoded, err := UnmarshalStreamEntry(MarshalStreamEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestMarshalUnmarshalApplication(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	app := &core.JobApplication{
		Id:          9,
		ProfileID:   "user-1",
		JobId:       2,
		StatusOrder: 3,
		Notes:       core.Ptr("phone screen"),
		InsertedAt:  now,
		UpdatedAt:   now,
	}

	decoded, err := UnmarshalApplication(MarshalApplication(app))
	require.NoError(t, err)
	assert.Equal(t, app, decoded)
}

func TestMarshalUnmarshalResume(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	resume := &core.StructuredResume{
		ProfileID:   "user-1",
		DocumentRef: "resumes/user-1.txt",
		Data: core.ExtractedResumeData{
			Name:   core.Ptr("Ada Lovelace"),
			Email:  core.Ptr("ada@example.com"),
			Skills: []string{"math", "engines"},
			Experience: []core.Experience{
				{Title: core.Ptr("Analyst"), Company: core.Ptr("Babbage"), Highlights: []string{"notes"}},
			},
			Education: []core.Education{
				{Institution: core.Ptr("Home"), GraduationYear: core.Ptr("1833")},
			},
		},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	decoded, err := UnmarshalResume(MarshalResume(resume))
	require.NoError(t, err)
	assert.Equal(t, resume, decoded)
}

func TestUnmarshal_Truncated(t *testing.T) {
	data := MarshalJob(&core.Job{Id: 1, Title: "Engineer", Description: core.Ptr("long description")})

	_, err := UnmarshalJob(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalCompany(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
