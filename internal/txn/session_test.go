package txn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zcnsdk/internal/fanout"
	"zcnsdk/internal/signer"
)

func newSession(t *testing.T, m *miner, initial int64) *Session {
	t.Helper()
	url := m.start(t)
	return NewSession(SessionConfig{
		Wallet:      testWallet(t),
		Broadcaster: NewBroadcaster(fanout.NewRequester(nil, time.Second), 20),
		Miners: func(context.Context) ([]string, error) {
			return []string{url}, nil
		},
		LoadNonce: func(context.Context) (int64, error) {
			return initial, nil
		},
		Fee: DefaultFee,
	})
}

func TestSession_NonceAdvancesOnlyOnAccept(t *testing.T) {
	m := &miner{}
	s := newSession(t, m, 10)

	// k=4 accepted, interleaved with 3 rejected.
	plan := []bool{true, false, true, false, false, true, true}
	accepted := 0
	for _, ok := range plan {
		if ok {
			atomic.StoreInt32(&m.status, http.StatusOK)
		} else {
			atomic.StoreInt32(&m.status, http.StatusBadRequest)
		}

		want := int64(10 + accepted + 1)
		_, err := s.Send(context.Background(), "to", 1, "", TypeSend)

		posted := m.lastTxn.Load().(map[string]any)
		assert.EqualValues(t, want, posted["transaction_nonce"])

		if ok {
			require.NoError(t, err)
			accepted++
		} else {
			var serr *SubmitError
			require.True(t, errors.As(err, &serr))
		}
	}

	assert.Equal(t, 4, accepted)
	assert.EqualValues(t, 14, s.Nonce())
}

func TestSession_ExecuteSmartContract(t *testing.T) {
	m := &miner{}
	s := newSession(t, m, 0)

	_, err := s.ExecuteSmartContract(context.Background(), "sc-address", "lock", map[string]any{"amount": 5}, 3)
	require.NoError(t, err)

	posted := m.lastTxn.Load().(map[string]any)
	assert.EqualValues(t, TypeSmartContract, posted["transaction_type"])
	assert.Equal(t, "sc-address", posted["to_client_id"])
	assert.EqualValues(t, 3, posted["transaction_value"])

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(posted["transaction_data"].(string)), &data))
	assert.Equal(t, "lock", data["name"])
	assert.Equal(t, map[string]any{"amount": float64(5)}, data["input"])
	assert.EqualValues(t, 1, s.Nonce())
}

func TestSession_NoWallet(t *testing.T) {
	s := NewSession(SessionConfig{Wallet: signer.Wallet{}})
	_, err := s.Send(context.Background(), "to", 1, "", TypeSend)
	require.Error(t, err)
}

func TestSession_MinersError(t *testing.T) {
	s := NewSession(SessionConfig{
		Wallet:      testWallet(t),
		Broadcaster: NewBroadcaster(fanout.NewRequester(nil, time.Second), 20),
		Miners: func(context.Context) ([]string, error) {
			return nil, errors.New("discovery down")
		},
	})

	_, err := s.Send(context.Background(), "to", 1, "", TypeSend)
	require.Error(t, err)
	assert.EqualValues(t, 0, s.Nonce())
}
