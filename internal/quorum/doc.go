// Package quorum provides the threshold math and the early-exit collector
// used for consensus reads and transaction submission. It stops reading as
// soon as the outcome is decided either way and hands the settled envelopes
// back in input order.
package quorum
