// Package txn builds, signs and broadcasts transactions and tracks the local
// nonce of a wallet session.
//
// A transaction moves Built -> Signed -> Submitted -> Accepted | Rejected.
// Only an accepted transaction consumes its nonce.
package txn
