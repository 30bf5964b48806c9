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

import "errors"

// Domain validation errors
var (
	// ErrInvalidJob indicates a Job or job extraction failed validation.
	ErrInvalidJob = errors.New("invalid job")

	// ErrInvalidResume indicates a résumé extraction failed validation.
	ErrInvalidResume = errors.New("invalid resume")

	// ErrInvalidApplication indicates a JobApplication failed validation.
	ErrInvalidApplication = errors.New("invalid job application")

	// ErrEmptyTitle indicates the job title is missing or blank.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyName indicates the résumé name is missing or blank.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptyProfile indicates the profile id is missing.
	ErrEmptyProfile = errors.New("profile id cannot be empty")

	// ErrNegativeStatusOrder indicates a status order below zero.
	ErrNegativeStatusOrder = errors.New("status order cannot be negative")
)
