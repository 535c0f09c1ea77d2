package fanout

import (
	"encoding/json"
	"fmt"
)

// Error codes recorded on failed envelopes. CodeCanceled is produced locally
// when the per-call timeout (or the caller) cancels the request, and never
// comes from a node.
const (
	CodeCanceled    = "ERR_CANCELED"
	CodeNetwork     = "ERR_NETWORK"
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeBadResponse = "ERR_BAD_RESPONSE"
	CodeNotJSON     = "ERR_NOT_JSON"
)

// Envelope is the settled outcome of one request to one node.
type Envelope struct {
	// Index is the endpoint's position in the dispatched endpoint list.
	Index    int
	Endpoint string

	OK     bool
	Status int

	// Payload is the JSON body: the response on success, or the error body
	// when a node answered with a JSON error.
	Payload json.RawMessage

	// Code is empty on success.
	Code string
	Err  error

	// Digest is filled in by the consensus resolver.
	Digest string
}

// HasErrorBody reports whether a failed envelope carries a JSON error body
// that can itself take part in consensus.
func (e Envelope) HasErrorBody() bool {
	return !e.OK && e.Status == 400 && len(e.Payload) > 0
}

// NodeError describes why a single node request failed.
type NodeError struct {
	Endpoint string
	Status   int
	Code     string
	Body     json.RawMessage

	cause error
}

func (e *NodeError) Error() string {
	switch {
	case e.cause != nil:
		return fmt.Sprintf("node %s: %s: %v", e.Endpoint, e.Code, e.cause)
	case e.Status != 0:
		return fmt.Sprintf("node %s: %s (status %d)", e.Endpoint, e.Code, e.Status)
	default:
		return fmt.Sprintf("node %s: %s", e.Endpoint, e.Code)
	}
}

func (e *NodeError) Unwrap() error {
	return e.cause
}
