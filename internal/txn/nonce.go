package txn

import (
	"context"
	"sync"
)

// NonceLoader fetches the last nonce the ledger has recorded for a wallet.
type NonceLoader func(ctx context.Context) (int64, error)

// NonceTracker owns the local nonce of one wallet session. Each transaction
// uses current+1; current moves only when that transaction is accepted, so
// a rejected nonce is reused by the next attempt. The value lives in memory
// only and starts over when the process restarts.
//
// The tracker is safe for concurrent use, but two transactions submitted at
// the same time will use the same nonce; callers must serialize submissions
// for one wallet.
type NonceTracker struct {
	mu      sync.Mutex
	loaded  bool
	current int64
}

// Next returns the nonce for the next transaction. On first use current is
// loaded with load; a failing or nil loader starts from 0.
func (n *NonceTracker) Next(ctx context.Context, load NonceLoader) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.loaded {
		n.current = 0
		if load != nil {
			if v, err := load(ctx); err == nil && v > 0 {
				n.current = v
			} else if err != nil {
				log.Debugw("nonce load failed, starting from 0", "err", err)
			}
		}
		n.loaded = true
	}
	return n.current + 1
}

// Advance records that the transaction using nonce was accepted. It reports
// whether the tracker moved; a nonce other than current+1 is ignored.
func (n *NonceTracker) Advance(used int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.loaded || used != n.current+1 {
		return false
	}
	n.current = used
	return true
}

// Current returns the last accepted nonce and whether it has been loaded.
func (n *NonceTracker) Current() (int64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.loaded
}
