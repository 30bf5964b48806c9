// Package mock provides test doubles for the ai package.
//
// Gateway answers every request from a scriptable function and records how often and
// with what it was called, so tests can assert that extraction was or was not retried.
package mock
