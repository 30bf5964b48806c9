// Package ingestion turns raw postings and résumé documents into stored records.
//
// Each request moves through a fixed sequence of states:
//
//	Received → Extracting → Resolving → Persisting → Completed
//
// with Failed reachable from any non-terminal state. Steps of one request run strictly
// in order; separate requests run in parallel on the executor handed to NewPipeline.
// A failed request leaves no durable writes behind, and every failure is a *Failure
// whose Class separates bad input from conditions worth retrying later.
package ingestion
