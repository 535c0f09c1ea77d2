// Package fanout issues the same request to every node of a set in parallel
// and settles each attempt into an Envelope. Per-node failures (timeouts,
// transport errors, HTTP errors, non-JSON bodies) are captured as failed
// envelopes and never returned to the caller as errors.
package fanout
