package sdk

import (
	"math/rand"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"zcnsdk/internal/engine"
	"zcnsdk/internal/signer"
)

// Option configures a Client.
type Option func(*Client)

// WithWallet sets the wallet transactions are signed with.
func WithWallet(w signer.Wallet) Option {
	return func(c *Client) {
		c.wallet = w
	}
}

// WithEngine sets the storage engine. Without it the client dials
// Config.EngineAddr, if set.
func WithEngine(e engine.StorageEngine) Option {
	return func(c *Client) {
		c.engine = e
	}
}

// WithHTTPClient sets the HTTP client used for node requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRand sets the source used to shuffle miners.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) {
		c.rand = r
	}
}

// WithMetrics registers the client's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}
