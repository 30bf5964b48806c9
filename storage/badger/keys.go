package badger

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/poiesic/jobstream/core"
)

// Key prefixes for different data types
const (
	companyRecordPrefix = "comrec"
	companyDomainPrefix = "comdom"
	companyNamePrefix   = "comnam"
	companyStubPrefix   = "comstub"
	companyIDSeq        = "comrecseq"
	jobRecordPrefix     = "jobrec"
	jobDedupPrefix      = "jobkey"
	jobIDSeq            = "jobrecseq"
	streamEntryPrefix   = "strrec"
	streamIDSeq         = "strrecseq"
	applicationPrefix   = "apprec"
	applicationUserPfx  = "appusr"
	applicationIDSeq    = "apprecseq"
	resumePrefix        = "resrec"
)

// Record ids in composite keys are zero padded so lexical order matches numeric order.

func makeCompanyKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%020d", companyRecordPrefix, id))
}

func makeCompanyDomainKey(domain string) []byte {
	return []byte(companyDomainPrefix + ":" + core.NormalizeDomain(domain))
}

// makeCompanyNameKey indexes every company by normalized name.
// Format: prefix:name:id
func makeCompanyNameKey(name string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%020d", companyNamePrefix, core.NormalizeName(name), id))
}

func makePartialCompanyNameKey(name string) []byte {
	return []byte(companyNamePrefix + ":" + core.NormalizeName(name) + ":")
}

// makeCompanyStubKey points at the single domainless company created for a name.
func makeCompanyStubKey(name string) []byte {
	return []byte(companyStubPrefix + ":" + core.NormalizeName(name))
}

func makeJobKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%020d", jobRecordPrefix, id))
}

// makeJobDedupKey hashes the dedup key so arbitrary titles stay out of the key space.
func makeJobDedupKey(dedupKey string) []byte {
	return []byte(fmt.Sprintf("%s:%016x", jobDedupPrefix, uint64(core.IDFromContent(dedupKey))))
}

// profileSegment escapes a profile ID for composite keys. The escaped form never
// contains ':', so one profile's prefix cannot match another profile's keys.
func profileSegment(profileID string) string {
	return url.QueryEscape(profileID)
}

// makeStreamEntryKey generates a composite key for a profile's stream.
// Format: prefix:escaped-profile:id
func makeStreamEntryKey(profileID string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%020d", streamEntryPrefix, profileSegment(profileID), id))
}

func makePartialStreamEntryKey(profileID string) []byte {
	return []byte(streamEntryPrefix + ":" + profileSegment(profileID) + ":")
}

func makeApplicationKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%020d", applicationPrefix, id))
}

// makeApplicationUserKey generates a composite key for the per-profile index.
// Format: prefix:escaped-profile:id
func makeApplicationUserKey(profileID string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%020d", applicationUserPfx, profileSegment(profileID), id))
}

func makePartialApplicationUserKey(profileID string) []byte {
	return []byte(applicationUserPfx + ":" + profileSegment(profileID) + ":")
}

// profileFromApplicationUserKey extracts and unescapes the profile of an index key.
func profileFromApplicationUserKey(key []byte) (string, error) {
	s := strings.TrimPrefix(string(key), applicationUserPfx+":")
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	return url.QueryUnescape(s)
}

func makeResumeKey(profileID string) []byte {
	return []byte(resumePrefix + ":" + profileSegment(profileID))
}
