package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/xerrors"
)

const (
	// DefaultTimeout is the default timeout for each node request.
	DefaultTimeout = 15 * time.Second

	maxBodySize = 16 << 20
)

// Call performs one request against a single node and always settles into
// an Envelope. Index and Endpoint are filled in by FanOut.
type Call func(ctx context.Context, endpoint string) Envelope

// Requester issues JSON requests to nodes with a per-call timeout.
type Requester struct {
	client  *http.Client
	timeout time.Duration
}

// NewRequester creates a requester. A nil client uses http.DefaultClient and
// a non-positive timeout uses DefaultTimeout.
func NewRequester(client *http.Client, timeout time.Duration) *Requester {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Requester{
		client:  client,
		timeout: timeout,
	}
}

// Timeout returns the per-call timeout.
func (r *Requester) Timeout() time.Duration {
	return r.timeout
}

// Get returns a Call issuing GET endpoint+path with the given query
// parameters. Empty parameter values are skipped.
func (r *Requester) Get(path string, params url.Values) Call {
	return func(ctx context.Context, endpoint string) Envelope {
		u, err := BuildURL(endpoint, path, params)
		if err != nil {
			return failed(endpoint, 0, CodeNetwork, nil, err)
		}
		return r.Do(ctx, http.MethodGet, u, nil)
	}
}

// Post returns a Call issuing POST endpoint+path with a JSON body.
func (r *Requester) Post(path string, body []byte) Call {
	return func(ctx context.Context, endpoint string) Envelope {
		u, err := BuildURL(endpoint, path, nil)
		if err != nil {
			return failed(endpoint, 0, CodeNetwork, nil, err)
		}
		return r.Do(ctx, http.MethodPost, u, body)
	}
}

// Do performs a single request. Transport errors, timeouts, HTTP statuses of
// 400 and above, and non-JSON bodies all produce a failed envelope.
func (r *Requester) Do(ctx context.Context, method, rawURL string, body []byte) Envelope {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, rawURL, reader)
	if err != nil {
		return failed(rawURL, 0, CodeNetwork, nil, xerrors.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return failed(rawURL, 0, transportCode(callCtx, err), nil, err)
	}
	defer resp.Body.Close() // nolint

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return failed(rawURL, resp.StatusCode, transportCode(callCtx, err), nil, xerrors.Errorf("read body: %w", err))
	}

	isJSON := isJSONContent(resp.Header.Get("Content-Type")) && json.Valid(data)

	if resp.StatusCode >= 400 {
		code := CodeBadRequest
		if resp.StatusCode >= 500 {
			code = CodeBadResponse
		}
		var payload json.RawMessage
		if isJSON {
			payload = data
		}
		return failed(rawURL, resp.StatusCode, code, payload, nil)
	}

	if !isJSON {
		return failed(rawURL, resp.StatusCode, CodeNotJSON, nil, nil)
	}

	return Envelope{
		Endpoint: rawURL,
		OK:       true,
		Status:   resp.StatusCode,
		Payload:  data,
	}
}

// BuildURL joins a node base URL and a path and appends non-empty params.
func BuildURL(endpoint, path string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint + path)
	if err != nil {
		return "", xerrors.Errorf("parse url %q: %w", endpoint+path, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				if v != "" {
					q.Add(k, v)
				}
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func failed(endpoint string, status int, code string, body json.RawMessage, cause error) Envelope {
	return Envelope{
		Endpoint: endpoint,
		Status:   status,
		Payload:  body,
		Code:     code,
		Err: &NodeError{
			Endpoint: endpoint,
			Status:   status,
			Code:     code,
			Body:     body,
			cause:    cause,
		},
	}
}

func transportCode(callCtx context.Context, err error) string {
	if callCtx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeNetwork
}

func isJSONContent(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediatype, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediatype == "application/json"
}
