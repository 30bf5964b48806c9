// Package extraction turns raw posting and résumé text into structured records through an
// ai.Gateway.
//
// A Client normalizes the input, asks the model for a JSON object under a bounded retry
// policy, repairs the usual formatting slips in the answer and decodes it into the
// target record, ignoring keys it does not know. Every failure is reported as an *Error
// whose Kind tells callers whether it was transient.
package extraction
