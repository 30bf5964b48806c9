package ai

import "strings"

// Schema names the record shape a request asks the model to produce.
type Schema string

const (
	// SchemaJob asks for an ExtractedJobData object.
	SchemaJob Schema = "job"
	// SchemaResume asks for an ExtractedResumeData object.
	SchemaResume Schema = "resume"
)

// Valid reports whether s is a known schema.
func (s Schema) Valid() bool {
	return s == SchemaJob || s == SchemaResume
}

// Request is one extraction call.
type Request struct {
	Schema Schema
	Text   string
}

// TruncateForLog shortens text for log attributes.
func TruncateForLog(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
