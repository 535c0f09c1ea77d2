package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zcnsdk/internal/fanout"
)

func node(t *testing.T, status int, body string, delay time.Duration) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func balanceQuery() Query {
	return Query{
		Class:  "sharders",
		Path:   "/v1/client/get/balance",
		Params: url.Values{"client_id": {"X"}},
	}
}

func TestReader_TimeoutIsolation(t *testing.T) {
	endpoints := []string{
		node(t, 200, `{"balance":5}`, 0),
		node(t, 200, `{"balance":5}`, 0),
		node(t, 200, `{"balance":5}`, 0),
		node(t, 200, `{"balance":5}`, 0),
		node(t, 200, `{"balance":5}`, 5*time.Second),
	}
	reader := NewReader(fanout.NewRequester(nil, 200*time.Millisecond), 0)

	start := time.Now()
	v, err := reader.Query(context.Background(), endpoints, balanceQuery())

	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":5}`, string(v.(json.RawMessage)))
	assert.Less(t, time.Since(start), time.Second)
}

func TestReader_Parser(t *testing.T) {
	endpoints := []string{node(t, 200, `{"balance":5}`, 0)}
	reader := NewReader(fanout.NewRequester(nil, time.Second), 20)

	q := balanceQuery()
	q.Parser = func(raw json.RawMessage) (any, error) {
		var b struct {
			Balance int64 `json:"balance"`
		}
		err := json.Unmarshal(raw, &b)
		return b.Balance, err
	}

	v, err := reader.Query(context.Background(), endpoints, q)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestReader_AgreedValueNotPresent(t *testing.T) {
	body := `{"code":"resource_not_found","error":"value not present"}`
	endpoints := make([]string, 5)
	for i := range endpoints {
		endpoints[i] = node(t, 400, body, 0)
	}
	reader := NewReader(fanout.NewRequester(nil, time.Second), 20)

	_, err := reader.Query(context.Background(), endpoints, balanceQuery())

	require.Error(t, err)
	assert.True(t, IsValueNotPresent(err))
}

func TestReader_AllServerErrors(t *testing.T) {
	endpoints := []string{
		node(t, 500, `{"error":"x"}`, 0),
		node(t, 502, `{"error":"y"}`, 0),
	}
	reader := NewReader(fanout.NewRequester(nil, time.Second), 100)

	_, err := reader.Query(context.Background(), endpoints, balanceQuery())

	var nc *NoConsensusError
	require.True(t, errors.As(err, &nc))
	assert.False(t, IsValueNotPresent(err))
}

func TestReader_NoEndpoints(t *testing.T) {
	reader := NewReader(fanout.NewRequester(nil, time.Second), 20)

	_, err := reader.Query(context.Background(), nil, balanceQuery())

	var nc *NoConsensusError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, ReasonNoSources, nc.Reason)
}

func TestReader_ContextCanceled(t *testing.T) {
	endpoints := []string{node(t, 200, `{}`, 5*time.Second)}
	reader := NewReader(fanout.NewRequester(nil, 10*time.Second), 20)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := reader.Query(ctx, endpoints, balanceQuery())

	var nc *NoConsensusError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, ReasonContextDone, nc.Reason)
}

func TestDecode(t *testing.T) {
	endpoints := []string{
		node(t, 200, `{"round":10,"hash":"h"}`, 0),
		node(t, 200, `{"hash":"h","round":10}`, 0),
	}
	reader := NewReader(fanout.NewRequester(nil, time.Second), 100)

	type block struct {
		Round int64  `json:"round"`
		Hash  string `json:"hash"`
	}
	b, err := Decode[block](context.Background(), reader, endpoints, Query{Class: "sharders", Path: "/v1/block/get/latest_finalized"})
	require.NoError(t, err)
	assert.Equal(t, block{Round: 10, Hash: "h"}, b)
}
