package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	"zcnsdk/internal/metrics"
)

var log = logging.Logger("zcn/fanout")

// FanOut issues call against every endpoint concurrently and returns a
// channel that receives one Envelope per endpoint, in completion order.
// The channel is buffered so senders never block once the reader has
// stopped listening, and it is closed after every call has settled.
//
// Each call runs on its own goroutine; a timeout on one call never cancels
// its siblings. Cancelling ctx cancels every call.
func FanOut(ctx context.Context, class string, endpoints []string, call Call) <-chan Envelope {
	out := make(chan Envelope, len(endpoints))
	if len(endpoints) == 0 {
		close(out)
		return out
	}

	reqID := uuid.NewString()
	log.Debugw("fan-out", "req", reqID, "class", class, "nodes", len(endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(idx int, ep string) {
			defer wg.Done()

			start := time.Now()
			env := call(ctx, ep)
			env.Index = idx
			env.Endpoint = ep

			outcome := "ok"
			if !env.OK {
				outcome = env.Code
				log.Debugw("node request failed", "req", reqID, "endpoint", ep, "code", env.Code, "status", env.Status, "err", env.Err)
			}
			metrics.FanoutRequests.WithLabelValues(class, outcome).Inc()
			metrics.FanoutDuration.WithLabelValues(class).Observe(time.Since(start).Seconds())

			out <- env
		}(i, endpoint)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
