package consensus

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zcnsdk/internal/fanout"
	"zcnsdk/internal/quorum"
)

func ok(idx int, payload string) fanout.Envelope {
	return fanout.Envelope{
		Index:    idx,
		Endpoint: fmt.Sprintf("http://node%d", idx),
		OK:       true,
		Status:   200,
		Payload:  json.RawMessage(payload),
	}
}

func fail(idx int, status int, code, body string) fanout.Envelope {
	env := fanout.Envelope{
		Index:    idx,
		Endpoint: fmt.Sprintf("http://node%d", idx),
		Status:   status,
		Code:     code,
		Err:      errors.New(code),
	}
	if body != "" {
		env.Payload = json.RawMessage(body)
	}
	return env
}

func TestCanonicalize_KeyOrderAndWhitespace(t *testing.T) {
	a, err := Canonicalize(json.RawMessage(`{"b":1, "a":{"y":2,"x":[1,2]}}`))
	require.NoError(t, err)
	b, err := Canonicalize(json.RawMessage(`{ "a" : {"x":[1,2],"y":2}, "b":1 }`))
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":{"x":[1,2],"y":2},"b":1}`, string(a))
	assert.Equal(t, Digest(a), Digest(b))
}

func TestCanonicalize_KeepsLargeNumbers(t *testing.T) {
	out, err := Canonicalize(json.RawMessage(`{"balance":12345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, `{"balance":12345678901234567890}`, string(out))
}

func TestCanonicalize_Invalid(t *testing.T) {
	_, err := Canonicalize(json.RawMessage(`{"a":`))
	require.Error(t, err)
	_, err = Canonicalize(json.RawMessage(`{} {}`))
	require.Error(t, err)
}

func TestResolve_MajorityWins(t *testing.T) {
	// Three nodes say 42, two say 7, T=ceil(5*20%)=1.
	envs := []fanout.Envelope{
		ok(0, `{"balance":42}`),
		ok(1, `{"balance":7}`),
		ok(2, `{"balance":42}`),
		ok(3, `{"balance":7}`),
		ok(4, `{"balance":42}`),
	}

	winner, err := Resolve(envs, quorum.Threshold(5, quorum.ConsensusPercentage))
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":42}`, string(winner.Payload))
	assert.Equal(t, 0, winner.Index)
}

func TestResolve_KeyOrderDoesNotSplitVote(t *testing.T) {
	envs := []fanout.Envelope{
		ok(0, `{"a":1,"b":2}`),
		ok(1, `{"b":2,"a":1}`),
		ok(2, `{"a":3}`),
	}

	tally := Count(envs)
	assert.Equal(t, 2, tally.Count)
	assert.Equal(t, []string{"http://node2"}, tally.Dissent)

	_, err := Resolve(envs, 2)
	require.NoError(t, err)
}

func TestResolve_TieBreakIsFirstInInputOrder(t *testing.T) {
	envs := []fanout.Envelope{
		ok(0, `{"v":"b"}`),
		ok(1, `{"v":"a"}`),
		ok(2, `{"v":"a"}`),
		ok(3, `{"v":"b"}`),
	}

	for i := 0; i < 3; i++ {
		winner, err := Resolve(envs, 2)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":"b"}`, string(winner.Payload))
		assert.Equal(t, 0, winner.Index)
	}
}

func TestResolve_InsufficientAgreement(t *testing.T) {
	envs := []fanout.Envelope{
		ok(0, `{"v":1}`),
		ok(1, `{"v":2}`),
		ok(2, `{"v":3}`),
	}

	_, err := Resolve(envs, 2)
	var nc *NoConsensusError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, ReasonInsufficientAgreement, nc.Reason)
	assert.Equal(t, 1, nc.Count)
	assert.Equal(t, 2, nc.Required)
}

func TestResolve_IgnoresFailures(t *testing.T) {
	envs := []fanout.Envelope{
		fail(0, 0, fanout.CodeCanceled, ""),
		ok(1, `{"v":1}`),
		fail(2, 0, fanout.CodeCanceled, ""),
	}

	winner, err := Resolve(envs, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, winner.Index)
}

func TestResolve_ZeroThresholdNeverAgrees(t *testing.T) {
	_, err := Resolve([]fanout.Envelope{ok(0, `{}`)}, 0)
	require.Error(t, err)

	_, err = Resolve(nil, 1)
	require.Error(t, err)
}

// TestResolve_ThresholdProperty: the resolver succeeds iff the most common
// digest reaches T, and then returns that payload.
func TestResolve_ThresholdProperty(t *testing.T) {
	f := func(votes []uint8) bool {
		if len(votes) == 0 {
			return true
		}
		if len(votes) > 30 {
			votes = votes[:30]
		}
		counts := make(map[int]int)
		envs := make([]fanout.Envelope, len(votes))
		for i, v := range votes {
			val := int(v % 3)
			counts[val]++
			envs[i] = ok(i, fmt.Sprintf(`{"v":%d}`, val))
		}
		best, bestVal := 0, -1
		for _, v := range votes {
			val := int(v % 3)
			if counts[val] > best {
				best, bestVal = counts[val], val
			}
		}

		th := quorum.Threshold(len(votes), quorum.ConsensusPercentage)
		winner, err := Resolve(envs, th)
		if best >= th {
			return err == nil && string(winner.Payload) == fmt.Sprintf(`{"v":%d}`, bestVal)
		}
		return err != nil
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestResolveFailures_AgreedErrorBody(t *testing.T) {
	body := `{"code":"resource_not_found","error":"value not present"}`
	envs := make([]fanout.Envelope, 5)
	for i := range envs {
		envs[i] = fail(i, 400, fanout.CodeBadRequest, body)
	}

	err := ResolveFailures(envs, 1)

	var agreed *AgreedError
	require.True(t, errors.As(err, &agreed))
	assert.Equal(t, 5, agreed.Count)
	assert.Equal(t, ValueNotPresent, agreed.Message())
	assert.True(t, IsValueNotPresent(err))
}

func TestResolveFailures_TransportCodesAreNotAnAnswer(t *testing.T) {
	envs := []fanout.Envelope{
		fail(0, 0, fanout.CodeCanceled, ""),
		fail(1, 0, fanout.CodeCanceled, ""),
		fail(2, 400, fanout.CodeBadRequest, `{"error":"value not present"}`),
	}

	err := ResolveFailures(envs, 1)

	var nc *NoConsensusError
	require.True(t, errors.As(err, &nc))
	require.NotNil(t, nc.Agreed)
	assert.Equal(t, fanout.CodeCanceled, nc.Agreed.Code)
	assert.Error(t, nc.Nodes)
	assert.False(t, IsValueNotPresent(err))
}

func TestResolveFailures_DistinctErrors(t *testing.T) {
	envs := []fanout.Envelope{
		fail(0, 400, fanout.CodeBadRequest, `{"error":"a"}`),
		fail(1, 400, fanout.CodeBadRequest, `{"error":"b"}`),
		fail(2, 500, fanout.CodeBadResponse, ""),
	}

	err := ResolveFailures(envs, 2)

	var nc *NoConsensusError
	require.True(t, errors.As(err, &nc))
	assert.Nil(t, nc.Agreed)
}

func TestIsValueNotPresent_OtherErrors(t *testing.T) {
	assert.False(t, IsValueNotPresent(nil))
	assert.False(t, IsValueNotPresent(errors.New(ValueNotPresent)))
	assert.False(t, IsValueNotPresent(&AgreedError{Body: json.RawMessage(`{"error":"insufficient funds"}`)}))
}
