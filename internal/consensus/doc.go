// Package consensus turns the answers of several independent nodes into a
// single trusted value. Payloads are compared by the sha3-256 digest of their
// canonical JSON form; the most common digest wins if it reaches the quorum
// threshold, with ties going to the earliest endpoint in input order.
//
// When not enough nodes succeed, their failures are voted on the same way. A
// JSON error body returned by enough nodes is itself the answer and surfaces
// as an *AgreedError; everything else is a *NoConsensusError.
package consensus
