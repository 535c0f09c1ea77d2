package consensus

import (
	"zcnsdk/internal/fanout"
)

// Tally is the outcome of counting envelopes by digest.
type Tally struct {
	// Winner is the first envelope, in input order, carrying the digest with
	// the highest count.
	Winner fanout.Envelope
	Count  int

	// Counts maps each digest to the number of envelopes carrying it.
	Counts map[string]int

	// Dissent lists the endpoints whose digest differs from the winner's.
	Dissent []string
}

// HasWinner reports whether any envelope was counted.
func (t *Tally) HasWinner() bool {
	return t.Count > 0
}

// Agreed reports whether the winner reached threshold.
func (t *Tally) Agreed(threshold int) bool {
	return threshold > 0 && t.Count >= threshold
}

// Count tallies envelopes by digest. Envelopes must be in input order; ties
// between equally common digests go to the one seen first. Envelopes whose
// payload cannot be digested are skipped.
func Count(envelopes []fanout.Envelope) Tally {
	tally := Tally{
		Counts: make(map[string]int),
	}

	digested := make([]fanout.Envelope, 0, len(envelopes))
	firstSeen := make(map[string]int)
	for _, env := range envelopes {
		env, ok := digestOf(env)
		if !ok {
			continue
		}
		if _, seen := firstSeen[env.Digest]; !seen {
			firstSeen[env.Digest] = len(digested)
		}
		tally.Counts[env.Digest]++
		digested = append(digested, env)
	}

	for _, env := range digested {
		n := tally.Counts[env.Digest]
		// Strictly greater keeps the earliest digest among equal counts.
		if n > tally.Count {
			tally.Winner = digested[firstSeen[env.Digest]]
			tally.Count = n
		}
	}

	for _, env := range digested {
		if env.Digest != tally.Winner.Digest {
			tally.Dissent = append(tally.Dissent, env.Endpoint)
		}
	}

	return tally
}

// Resolve picks the most common successful payload among envelopes. The
// winner is returned only if at least threshold envelopes agree on it,
// otherwise the error is a *NoConsensusError. Failed envelopes are ignored.
func Resolve(envelopes []fanout.Envelope, threshold int) (fanout.Envelope, error) {
	ok := make([]fanout.Envelope, 0, len(envelopes))
	for _, env := range envelopes {
		if env.OK {
			ok = append(ok, env)
		}
	}

	tally := Count(ok)
	if !tally.Agreed(threshold) {
		return fanout.Envelope{}, &NoConsensusError{
			Reason:   ReasonInsufficientAgreement,
			Count:    tally.Count,
			Required: threshold,
		}
	}
	return tally.Winner, nil
}

// ResolveFailures runs the same vote over failed envelopes. When at least
// threshold nodes answered with the same JSON error body, that error is the
// agreed answer and an *AgreedError is returned. Anything else, including
// agreement on a bare transport code, is a *NoConsensusError.
func ResolveFailures(envelopes []fanout.Envelope, threshold int) error {
	failed := make([]fanout.Envelope, 0, len(envelopes))
	for _, env := range envelopes {
		if !env.OK {
			failed = append(failed, env)
		}
	}

	tally := Count(failed)
	nc := &NoConsensusError{
		Reason:   ReasonInsufficientAgreement,
		Count:    tally.Count,
		Required: threshold,
		Nodes:    nodeErrors(failed),
	}
	if !tally.Agreed(threshold) {
		return nc
	}

	agreed := &AgreedError{
		Code:   tally.Winner.Code,
		Status: tally.Winner.Status,
		Body:   tally.Winner.Payload,
		Count:  tally.Count,
	}
	if !tally.Winner.HasErrorBody() {
		nc.Agreed = agreed
		return nc
	}
	return agreed
}
