package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"zcnsdk/internal/fanout"
	"zcnsdk/internal/metrics"
	"zcnsdk/internal/quorum"
)

var log = logging.Logger("zcn/consensus")

// Parser transforms the agreed payload into the value returned to callers.
type Parser func(json.RawMessage) (any, error)

// Query describes one consensus read. It is not modified once dispatched.
type Query struct {
	// Class names the node class being queried and labels metrics.
	Class  string
	Path   string
	Params url.Values
	Parser Parser
}

// Reader runs consensus reads: fan the query out, collect a quorum, and
// resolve the agreed answer.
type Reader struct {
	requester  *fanout.Requester
	percentage int
}

// NewReader creates a reader. A non-positive percentage uses
// quorum.ConsensusPercentage.
func NewReader(requester *fanout.Requester, percentage int) *Reader {
	if percentage <= 0 {
		percentage = quorum.ConsensusPercentage
	}
	return &Reader{
		requester:  requester,
		percentage: percentage,
	}
}

// Fetch runs q against endpoints and returns the winning envelope.
//
// If a quorum of nodes answered successfully the winner comes from Resolve.
// Otherwise the failures themselves are voted on, so an error several nodes
// agree on is returned as an *AgreedError.
func (r *Reader) Fetch(ctx context.Context, endpoints []string, q Query) (fanout.Envelope, error) {
	n := len(endpoints)
	threshold := quorum.Threshold(n, r.percentage)

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	attempts := fanout.FanOut(fctx, q.Class, endpoints, r.requester.Get(q.Path, q.Params))
	res := quorum.Collect(ctx, attempts, n, threshold)

	if res.Success {
		winner, err := Resolve(res.Succeeded, threshold)
		if err != nil {
			r.failed(q, ReasonInsufficientAgreement, err)
			return fanout.Envelope{}, err
		}
		return winner, nil
	}

	var err error
	switch {
	case errors.Is(res.Err, quorum.ErrNoSources):
		err = &NoConsensusError{Reason: ReasonNoSources, Required: threshold, cause: res.Err}
	case ctx.Err() != nil:
		err = &NoConsensusError{Reason: ReasonContextDone, Required: threshold, Nodes: nodeErrors(res.Failed), cause: ctx.Err()}
	default:
		err = ResolveFailures(res.Failed, threshold)
	}

	reason := ReasonInsufficientAgreement
	var nc *NoConsensusError
	var agreed *AgreedError
	switch {
	case errors.As(err, &nc):
		reason = nc.Reason
	case errors.As(err, &agreed):
		reason = "agreed error"
	}
	r.failed(q, reason, err)
	return fanout.Envelope{}, err
}

// Query runs q and applies its parser to the agreed payload. Without a
// parser the payload is returned as json.RawMessage.
func (r *Reader) Query(ctx context.Context, endpoints []string, q Query) (any, error) {
	winner, err := r.Fetch(ctx, endpoints, q)
	if err != nil {
		return nil, err
	}
	if q.Parser == nil {
		return winner.Payload, nil
	}
	v, err := q.Parser(winner.Payload)
	if err != nil {
		return nil, xerrors.Errorf("parse %s response: %w", q.Path, err)
	}
	return v, nil
}

// Decode runs q and unmarshals the agreed payload into T. q.Parser is not
// used.
func Decode[T any](ctx context.Context, r *Reader, endpoints []string, q Query) (T, error) {
	var out T
	winner, err := r.Fetch(ctx, endpoints, q)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(winner.Payload, &out); err != nil {
		return out, xerrors.Errorf("decode %s response: %w", q.Path, err)
	}
	return out, nil
}

func (r *Reader) failed(q Query, reason string, err error) {
	metrics.ConsensusFailures.WithLabelValues(reason).Inc()
	if reason == "agreed error" {
		// Often an expected answer, e.g. "value not present".
		log.Debugw("consensus query agreed on error", "class", q.Class, "path", q.Path, "err", err)
		return
	}
	log.Warnw("consensus query failed", "class", q.Class, "path", q.Path, "reason", reason, "err", err)
}
