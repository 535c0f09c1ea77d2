package txn

import (
	"context"
	"encoding/json"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"zcnsdk/internal/fanout"
	"zcnsdk/internal/metrics"
	"zcnsdk/internal/quorum"
)

var log = logging.Logger("zcn/txn")

// PathPutTransaction is the miner path transactions are posted to.
const PathPutTransaction = "/v1/transaction/put"

// SubmitError reports that no quorum of miners accepted a transaction. Code
// is the error code of the first miner failure observed.
type SubmitError struct {
	Code   string
	Status int
	Body   json.RawMessage
	Hash   string

	cause error
}

func (e *SubmitError) Error() string {
	msg := fmt.Sprintf("submit transaction %s: %s", e.Hash, e.Code)
	if len(e.Body) > 0 {
		msg += ": " + string(e.Body)
	}
	return msg
}

func (e *SubmitError) Unwrap() error {
	return e.cause
}

// Broadcaster posts signed transactions to every miner.
type Broadcaster struct {
	requester  *fanout.Requester
	percentage int
}

// NewBroadcaster creates a broadcaster. A non-positive percentage uses
// quorum.ConsensusPercentage.
func NewBroadcaster(requester *fanout.Requester, percentage int) *Broadcaster {
	if percentage <= 0 {
		percentage = quorum.ConsensusPercentage
	}
	return &Broadcaster{
		requester:  requester,
		percentage: percentage,
	}
}

// Submit posts tx to all miners and waits until ceil(N*percentage/100) of
// them accept it. The first accepting miner in input order is authoritative;
// its entity is returned. tx ends up Accepted or Rejected.
func (b *Broadcaster) Submit(ctx context.Context, tx *Transaction, miners []string) (*Response, error) {
	if err := tx.transition(Submitted); err != nil {
		return nil, err
	}

	body, err := json.Marshal(tx)
	if err != nil {
		_ = tx.transition(Rejected)
		return nil, xerrors.Errorf("encode transaction: %w", err)
	}

	n := len(miners)
	threshold := quorum.Threshold(n, b.percentage)
	// Miners still in flight once the outcome is known are cancelled.
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	attempts := fanout.FanOut(fctx, "miners", miners, b.requester.Post(PathPutTransaction, body))
	res := quorum.Collect(ctx, attempts, n, threshold)

	if !res.Success {
		_ = tx.transition(Rejected)
		metrics.Transactions.WithLabelValues("rejected").Inc()

		serr := &SubmitError{Hash: tx.Hash, Code: quorum.ReasonNoSources, cause: res.Err}
		if res.FirstFailure != nil {
			serr.Code = res.FirstFailure.Code
			serr.Status = res.FirstFailure.Status
			serr.Body = res.FirstFailure.Payload
		} else if qerr, ok := res.Err.(*quorum.Error); ok {
			serr.Code = qerr.Reason
		}
		log.Warnw("transaction rejected", "hash", tx.Hash, "nonce", tx.Nonce, "code", serr.Code, "miners", n, "required", threshold)
		return nil, serr
	}

	resp, err := parseResponse(res.Succeeded[0].Payload)
	if err != nil {
		// The miners accepted it; only the reply is unreadable.
		resp = &Response{Hash: tx.Hash, ClientID: tx.ClientID, Nonce: tx.Nonce}
		log.Warnw("unreadable miner response", "hash", tx.Hash, "miner", res.Succeeded[0].Endpoint, "err", err)
	}
	_ = tx.transition(Accepted)
	metrics.Transactions.WithLabelValues("accepted").Inc()
	log.Debugw("transaction accepted", "hash", tx.Hash, "nonce", tx.Nonce, "accepted", len(res.Succeeded), "required", threshold)
	return resp, nil
}
