// Package chaintest runs an in-process fake chain for tests: miners and
// sharders backed by one shared ledger, a discovery endpoint, and a gRPC
// storage engine. Individual nodes can be slowed down, taken down or made
// to return canned responses.
package chaintest
