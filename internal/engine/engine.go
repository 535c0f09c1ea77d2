package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jpillora/backoff"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("zcn/engine")

// DefaultInitTimeout is how long WaitReady waits before warning that the
// engine is slow to start.
const DefaultInitTimeout = 10 * time.Second

// Identity is the wallet identity handed to the engine.
type Identity struct {
	ClientID  string `json:"client_id"`
	PublicKey string `json:"public_key"`
	Scheme    string `json:"scheme"`
}

// StorageEngine is the external module that performs allocation, file and
// blobber operations. Its payloads are opaque to this module.
type StorageEngine interface {
	Ready(ctx context.Context) (bool, error)
	SetWallet(ctx context.Context, id Identity) error

	ListAllocations(ctx context.Context) (json.RawMessage, error)
	GetAllocation(ctx context.Context, allocationID string) (json.RawMessage, error)
	GetBlobbers(ctx context.Context) (json.RawMessage, error)

	ListObjects(ctx context.Context, allocationID, path string) (json.RawMessage, error)
	GetFileStats(ctx context.Context, allocationID, path string) (json.RawMessage, error)
	CreateDir(ctx context.Context, allocationID, path string) error
	DeleteObject(ctx context.Context, allocationID, path string) error
	RenameObject(ctx context.Context, allocationID, path, newName string) error
	CopyObject(ctx context.Context, allocationID, path, destPath string) error
	MoveObject(ctx context.Context, allocationID, path, destPath string) error

	Close() error
}

// WaitReady polls e until it reports ready or ctx is done. If the engine is
// still not ready after warnAfter, a single warning is logged and polling
// continues.
func WaitReady(ctx context.Context, e StorageEngine, warnAfter time.Duration) error {
	if warnAfter <= 0 {
		warnAfter = DefaultInitTimeout
	}

	b := &backoff.Backoff{
		Min:    20 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
	}
	start := time.Now()
	warned := false

	for {
		ready, err := e.Ready(ctx)
		if ready {
			if warned {
				log.Infow("storage engine ready", "after", time.Since(start))
			}
			return nil
		}

		if !warned && time.Since(start) >= warnAfter {
			warned = true
			log.Warnw("storage engine is slow to start; still waiting", "waited", time.Since(start), "err", err)
		} else if err != nil {
			log.Debugw("storage engine not ready", "attempts", b.Attempt(), "err", err)
		}

		select {
		case <-ctx.Done():
			return xerrors.Errorf("waiting for storage engine: %w", ctx.Err())
		case <-time.After(b.Duration()):
		}
	}
}
