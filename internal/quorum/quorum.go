package quorum

import (
	"context"
	"fmt"
	"sort"

	"zcnsdk/internal/fanout"
)

const (
	// ConsensusPercentage is the default share of queried nodes that must
	// agree for an answer to be trusted.
	ConsensusPercentage = 20
)

// Reasons carried by Error.
const (
	ReasonNoSources   = "no sources"
	ReasonUnreachable = "quorum unreachable"
	ReasonContextDone = "context done"
)

// ErrNoSources is returned when a collection has nothing to collect from:
// zero endpoints or a zero threshold.
var ErrNoSources = &Error{Reason: ReasonNoSources}

// Error is the tagged failure of a collection.
type Error struct {
	Reason    string
	Succeeded int
	Failed    int
	Required  int
	Total     int
	cause     error
}

func (e *Error) Error() string {
	if e.Total == 0 && e.Required == 0 {
		return "quorum: " + e.Reason
	}
	msg := fmt.Sprintf("quorum: %s: succeeded=%d failed=%d required=%d total=%d",
		e.Reason, e.Succeeded, e.Failed, e.Required, e.Total)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same reason, so errors.Is(err, ErrNoSources)
// works on the values returned by Collect.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// Result is the outcome of a quorum collection.
type Result struct {
	Success  bool
	Required int
	Total    int

	// Succeeded and Failed hold the settled envelopes ordered by Index, so
	// consumers never depend on arrival order.
	Succeeded []fanout.Envelope
	Failed    []fanout.Envelope

	// FirstFailure is the first failed envelope in arrival order, if any.
	FirstFailure *fanout.Envelope

	Err error
}

// Settled returns every collected envelope ordered by Index.
func (r Result) Settled() []fanout.Envelope {
	all := make([]fanout.Envelope, 0, len(r.Succeeded)+len(r.Failed))
	all = append(all, r.Succeeded...)
	all = append(all, r.Failed...)
	sortByIndex(all)
	return all
}

// Threshold returns ceil(n*pct/100).
func Threshold(n, pct int) int {
	if n <= 0 || pct <= 0 {
		return 0
	}
	return (n*pct + 99) / 100
}

// Collect reads envelopes from attempts until one of:
//   - threshold envelopes succeeded (success),
//   - more than n-threshold failed, so success can no longer be reached,
//   - all n settled or the channel closed,
//   - ctx is done.
//
// Outstanding attempts are left running; their envelopes are simply not
// read. A zero threshold or zero n fails immediately with ErrNoSources.
func Collect(ctx context.Context, attempts <-chan fanout.Envelope, n, threshold int) Result {
	if n <= 0 || threshold <= 0 {
		return Result{
			Required: threshold,
			Total:    n,
			Err:      ErrNoSources,
		}
	}

	if threshold > n {
		return Result{
			Required: threshold,
			Total:    n,
			Err: &Error{
				Reason:   ReasonUnreachable,
				Required: threshold,
				Total:    n,
				cause:    fmt.Errorf("required=%d exceeds node count=%d", threshold, n),
			},
		}
	}

	res := Result{
		Required: threshold,
		Total:    n,
	}

	finish := func(reason string, cause error) Result {
		sortByIndex(res.Succeeded)
		sortByIndex(res.Failed)
		if len(res.Succeeded) >= threshold {
			res.Success = true
			return res
		}
		res.Err = &Error{
			Reason:    reason,
			Succeeded: len(res.Succeeded),
			Failed:    len(res.Failed),
			Required:  threshold,
			Total:     n,
			cause:     cause,
		}
		return res
	}

	for settled := 0; settled < n; settled++ {
		select {
		case env, ok := <-attempts:
			if !ok {
				return finish(ReasonUnreachable, nil)
			}
			if env.OK {
				res.Succeeded = append(res.Succeeded, env)
				if len(res.Succeeded) >= threshold {
					return finish("", nil)
				}
				continue
			}
			res.Failed = append(res.Failed, env)
			if res.FirstFailure == nil {
				first := env
				res.FirstFailure = &first
			}
			// Success needs threshold of the n; once more than n-threshold
			// have failed it cannot happen.
			if len(res.Failed) > n-threshold {
				return finish(ReasonUnreachable, nil)
			}
		case <-ctx.Done():
			return finish(ReasonContextDone, ctx.Err())
		}
	}

	return finish(ReasonUnreachable, nil)
}

func sortByIndex(envs []fanout.Envelope) {
	sort.SliceStable(envs, func(i, j int) bool {
		return envs[i].Index < envs[j].Index
	})
}
