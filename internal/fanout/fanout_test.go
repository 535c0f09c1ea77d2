package fanout

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
)

func jsonServer(t *testing.T, status int, body string, delay time.Duration) *httptest.Server {
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
	return srv
}

func TestRequester_Get_Success(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		require.Equal(t, "/v1/client/get/balance", r.URL.Path)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, `{"balance":42}`)
	}))
	defer srv.Close()

	r := NewRequester(nil, time.Second)
	env := r.Get("/v1/client/get/balance", url.Values{"client_id": {"X"}, "empty": {""}})(context.Background(), srv.URL)

	require.True(t, env.OK, "unexpected failure: %v", env.Err)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.JSONEq(t, `{"balance":42}`, string(env.Payload))
	assert.Equal(t, "X", gotQuery.Get("client_id"))
	assert.False(t, gotQuery.Has("empty"))
}

func TestRequester_TimeoutIsLocalCancellation(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{}`, 2*time.Second)

	r := NewRequester(nil, 50*time.Millisecond)
	start := time.Now()
	env := r.Get("/", nil)(context.Background(), srv.URL)

	require.False(t, env.OK)
	assert.Equal(t, CodeCanceled, env.Code)
	assert.Zero(t, env.Status)
	assert.Less(t, time.Since(start), time.Second)

	var nodeErr *NodeError
	require.True(t, errors.As(env.Err, &nodeErr))
	assert.Equal(t, CodeCanceled, nodeErr.Code)
}

func TestRequester_ErrorStatusKeepsJSONBody(t *testing.T) {
	srv := jsonServer(t, http.StatusBadRequest, `{"code":"resource_not_found","error":"value not present"}`, 0)

	env := NewRequester(nil, time.Second).Get("/", nil)(context.Background(), srv.URL)

	require.False(t, env.OK)
	assert.Equal(t, CodeBadRequest, env.Code)
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.True(t, env.HasErrorBody())
	assert.JSONEq(t, `{"code":"resource_not_found","error":"value not present"}`, string(env.Payload))
}

func TestRequester_ServerError(t *testing.T) {
	srv := jsonServer(t, http.StatusInternalServerError, `{"error":"boom"}`, 0)

	env := NewRequester(nil, time.Second).Get("/", nil)(context.Background(), srv.URL)

	require.False(t, env.OK)
	assert.Equal(t, CodeBadResponse, env.Code)
	assert.False(t, env.HasErrorBody())
}

func TestRequester_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	env := NewRequester(nil, time.Second).Get("/", nil)(context.Background(), srv.URL)

	require.False(t, env.OK)
	assert.Equal(t, CodeNotJSON, env.Code)
}

func TestRequester_ConnectionRefused(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{}`, 0)
	addr := srv.URL
	srv.Close()

	env := NewRequester(nil, time.Second).Get("/", nil)(context.Background(), addr)

	require.False(t, env.OK)
	assert.Equal(t, CodeNetwork, env.Code)
}

func TestRequester_Post(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"entity":{"hash":"abc"}}`)
	}))
	defer srv.Close()

	env := NewRequester(nil, time.Second).Post("/v1/transaction/put", []byte(`{"hash":"abc"}`))(context.Background(), srv.URL)

	require.True(t, env.OK)
	assert.Equal(t, "abc", got["hash"])
}

func TestFanOut_TimeoutDoesNotCancelSiblings(t *testing.T) {
	endpoints := make([]string, 0, 5)
	for i := 0; i < 4; i++ {
		endpoints = append(endpoints, jsonServer(t, http.StatusOK, `{"balance":1}`, 0).URL)
	}
	endpoints = append(endpoints, jsonServer(t, http.StatusOK, `{"balance":1}`, 2*time.Second).URL)

	r := NewRequester(nil, 100*time.Millisecond)
	ch := FanOut(context.Background(), "sharders", endpoints, r.Get("/", nil))

	seen := make(map[int]Envelope)
	for env := range ch {
		seen[env.Index] = env
	}

	require.Len(t, seen, 5)
	for i := 0; i < 4; i++ {
		assert.True(t, seen[i].OK, "endpoint %d", i)
		assert.Equal(t, endpoints[i], seen[i].Endpoint)
	}
	assert.False(t, seen[4].OK)
	assert.Equal(t, CodeCanceled, seen[4].Code)
}

func TestFanOut_NoEndpoints(t *testing.T) {
	ch := FanOut(context.Background(), "miners", nil, nil)
	_, open := <-ch
	require.False(t, open)
}

func TestBuildURL(t *testing.T) {
	u, err := BuildURL("https://a/sharder01", "/v1/client/get/balance", url.Values{"client_id": {"X"}})
	require.NoError(t, err)
	require.Equal(t, "https://a/sharder01/v1/client/get/balance?client_id=X", u)

	_, err = BuildURL("://bad", "/", nil)
	require.Error(t, err)
}
