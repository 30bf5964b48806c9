// Package workflow runs long-lived background workflows: discovering new postings and
// tracking application statuses.
//
// An Engine holds registered workflows and runs each invocation on an executor under a
// timeout. A workflow never runs twice at once: a trigger that arrives while an invocation
// is in flight is rejected with ErrSingleFlightRejected. Outcomes are handed to a
// supervisor goroutine that logs them; workflow errors never escape the engine.
package workflow
