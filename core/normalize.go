package core

import (
	"strings"
	"unicode"
)

// legalSuffixes are dropped from the tail of company names before comparison.
var legalSuffixes = []string{"inc", "llc", "ltd", "corp", "corporation", "co", "gmbh", "plc", "sa"}

// CollapseSpace trims s and collapses every run of whitespace to a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDomain lowercases a domain and strips scheme, credentials, "www.", port and path.
//
//	NormalizeDomain("HTTPS://www.Acme.com/careers") == "acme.com"
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, "@"); i >= 0 {
		d = d[i+1:]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.Trim(d, ".")
}

// NormalizeName reduces a company name to a comparison key: lowercase, punctuation removed,
// whitespace collapsed, trailing legal suffixes dropped.
//
//	NormalizeName("Acme Corp.") == NormalizeName("ACME") == "acme"
func NormalizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		if r == '&' {
			return r
		}
		return ' '
	}, name)
	words := strings.Fields(cleaned)
	for len(words) > 1 && isLegalSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isLegalSuffix(word string) bool {
	for _, s := range legalSuffixes {
		if word == s {
			return true
		}
	}
	return false
}

// NormalizeTitle reduces a job title to a comparison key.
func NormalizeTitle(title string) string {
	return strings.ToLower(CollapseSpace(title))
}

// NormalizeLocation tidies a location for storage. Any spelling of "remote" becomes "Remote".
func NormalizeLocation(location string) string {
	loc := CollapseSpace(location)
	if strings.EqualFold(loc, "remote") {
		return "Remote"
	}
	return loc
}

// JobDedupKey returns the natural key identifying a posting across ingestions:
// the company key, the normalized title and the normalized location.
func JobDedupKey(company *Company, title string, location *string) string {
	loc := ""
	if location != nil {
		loc = strings.ToLower(NormalizeLocation(*location))
	}
	return "(" + company.Key() + "," + NormalizeTitle(title) + "," + loc + ")"
}
