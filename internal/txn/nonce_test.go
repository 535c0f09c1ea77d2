package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceTracker_LazyLoad(t *testing.T) {
	var n NonceTracker
	calls := 0
	load := func(context.Context) (int64, error) {
		calls++
		return 41, nil
	}

	_, loaded := n.Current()
	require.False(t, loaded)

	assert.EqualValues(t, 42, n.Next(context.Background(), load))
	assert.EqualValues(t, 42, n.Next(context.Background(), load))
	assert.Equal(t, 1, calls)

	cur, loaded := n.Current()
	assert.True(t, loaded)
	assert.EqualValues(t, 41, cur)
}

func TestNonceTracker_LoadFailureStartsAtZero(t *testing.T) {
	var n NonceTracker
	got := n.Next(context.Background(), func(context.Context) (int64, error) {
		return 0, errors.New("sharders down")
	})
	assert.EqualValues(t, 1, got)

	var m NonceTracker
	assert.EqualValues(t, 1, m.Next(context.Background(), nil))
}

func TestNonceTracker_AdvanceOnlyFromNext(t *testing.T) {
	var n NonceTracker
	assert.False(t, n.Advance(1), "advance before load")

	next := n.Next(context.Background(), nil)
	assert.False(t, n.Advance(next+1))
	assert.True(t, n.Advance(next))
	assert.False(t, n.Advance(next), "same nonce twice")

	cur, _ := n.Current()
	assert.Equal(t, next, cur)
	assert.Equal(t, next+1, n.Next(context.Background(), nil))
}
