// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// Validate checks an extracted posting.
//
// Validation rules:
//   - Title must not be blank
//
// Everything else is optional; absent fields are filled by resolution defaults.
func (d *ExtractedJobData) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: extraction is nil", ErrInvalidJob)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyTitle)
	}
	return nil
}

// Validate checks an extracted résumé. Name is the only mandatory field.
func (d *ExtractedResumeData) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: extraction is nil", ErrInvalidResume)
	}
	if d.Name == nil || strings.TrimSpace(*d.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidResume, ErrEmptyName)
	}
	return nil
}

// ValidateJob validates a Job before it is written.
func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}
	if strings.TrimSpace(job.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyTitle)
	}
	return nil
}

// ValidateApplication validates a JobApplication before it is written.
func ValidateApplication(app *JobApplication) error {
	if app == nil {
		return fmt.Errorf("%w: application is nil", ErrInvalidApplication)
	}
	if app.ProfileID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidApplication, ErrEmptyProfile)
	}
	if app.StatusOrder < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidApplication, ErrNegativeStatusOrder)
	}
	return nil
}
