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


// Package storage provides the storage abstraction layer for jobstream.
//
// This package defines repository interfaces that decouple storage implementation
// from the ingestion pipeline and the workflows, plus the binary record codec shared
// by implementations.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - CompanyRepository: companies, matched by domain or normalized name
//   - JobRepository: jobs keyed by dedup key, postings and job stream entries
//   - ApplicationRepository: job applications with monotonic status orders
//   - ResumeRepository: one structured résumé per profile
//   - Store: all of the above over one backend
//   - ObjectStore: raw documents (résumés, discovered postings)
//
// # Usage
//
// Create a store instance:
//
//	store, err := badger.Open("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore()
//
// # Errors
//
// Implementations report ErrNotFound for missing records, ErrConflict for writes that
// would break an invariant, and ErrUnavailable for transient failures. Only
// ErrUnavailable is worth retrying.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
