package consensus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"zcnsdk/internal/fanout"
)

// Reasons carried by NoConsensusError.
const (
	ReasonInsufficientAgreement = "insufficient agreement"
	ReasonNoSources             = "no sources"
	ReasonContextDone           = "context done"
)

// ValueNotPresent is the error text sharders return for state they have no
// record of, such as the balance of an account that never transacted.
const ValueNotPresent = "value not present"

// NoConsensusError reports that the queried nodes did not agree on an answer.
type NoConsensusError struct {
	Reason   string
	Count    int
	Required int

	// Agreed is set when enough nodes failed the same way but without a
	// JSON error body, e.g. all timed out.
	Agreed *AgreedError

	// Nodes aggregates the individual node failures, if any.
	Nodes error

	cause error
}

func (e *NoConsensusError) Error() string {
	msg := "no consensus: " + e.Reason
	if e.Required > 0 {
		msg += fmt.Sprintf(" (best=%d required=%d)", e.Count, e.Required)
	}
	if e.Agreed != nil {
		msg += ": nodes agreed on " + e.Agreed.Code
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *NoConsensusError) Unwrap() error {
	return e.cause
}

// AgreedError is a failure that enough nodes returned identically for it to
// be the consensus answer itself.
type AgreedError struct {
	Code   string
	Status int
	Body   json.RawMessage
	Count  int
}

func (e *AgreedError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("nodes agreed on error (%d): %s", e.Count, msg)
	}
	return fmt.Sprintf("nodes agreed on error (%d): %s", e.Count, e.Code)
}

// Message returns the "error" field of the agreed body, if any.
func (e *AgreedError) Message() string {
	var body struct {
		Error string `json:"error"`
	}
	if len(e.Body) == 0 || json.Unmarshal(e.Body, &body) != nil {
		return ""
	}
	return body.Error
}

// IsValueNotPresent reports whether err is an agreed "value not present"
// answer. Callers that treat missing state as a zero value must check for it
// explicitly; other agreed errors stay errors.
func IsValueNotPresent(err error) bool {
	var agreed *AgreedError
	if !errors.As(err, &agreed) {
		return false
	}
	return agreed.Message() == ValueNotPresent
}

func nodeErrors(envelopes []fanout.Envelope) error {
	var merr *multierror.Error
	for _, env := range envelopes {
		if env.Err != nil {
			merr = multierror.Append(merr, env.Err)
		}
	}
	return merr.ErrorOrNil()
}
