package it

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"zcnsdk/internal/chaintest"
	"zcnsdk/internal/config"
	"zcnsdk/internal/signer"
	"zcnsdk/sdk"
)

// Cluster is an in-process network of miners and sharders that clients
// reach through discovery, the way they reach a real deployment.
type Cluster struct {
	t   testing.TB
	net *chaintest.Network

	mu      sync.Mutex
	clients []*sdk.Client
}

// NewCluster starts a network with the given number of miners and sharders.
func NewCluster(t testing.TB, miners, sharders int) *Cluster {
	t.Helper()
	c := &Cluster{t: t, net: chaintest.New(t, miners, sharders)}
	t.Cleanup(c.Stop)
	return c
}

// Network exposes the underlying fake network.
func (c *Cluster) Network() *chaintest.Network {
	return c.net
}

// Config returns a client configuration that discovers the cluster.
func (c *Cluster) Config() config.Config {
	cfg := config.Default()
	cfg.Domain = c.net.Domain()
	cfg.RequestTimeout = config.Duration(time.Second)
	cfg.ConfirmationTimeout = config.Duration(5 * time.Second)
	return cfg
}

// NewWallet derives a BLS wallet from a one-byte seed and funds it.
func (c *Cluster) NewWallet(seed byte, balance int64) signer.Wallet {
	c.t.Helper()
	s, err := signer.NewBLSSigner(bytes.Repeat([]byte{seed}, 32))
	if err != nil {
		c.t.Fatalf("new signer: %v", err)
	}
	w := signer.NewWallet(s)
	if balance > 0 {
		c.net.Ledger.Fund(w.ClientID, balance)
	}
	return w
}

// NewClient returns a client for w, closed with the cluster.
func (c *Cluster) NewClient(w signer.Wallet) *sdk.Client {
	c.t.Helper()
	var opts []sdk.Option
	if !w.IsZero() {
		opts = append(opts, sdk.WithWallet(w))
	}
	cl, err := sdk.New(c.Config(), opts...)
	if err != nil {
		c.t.Fatalf("new client: %v", err)
	}

	c.mu.Lock()
	c.clients = append(c.clients, cl)
	c.mu.Unlock()
	return cl
}

// GetNode returns a miner or sharder by ID, e.g. "sharder02".
func (c *Cluster) GetNode(nodeID string) *chaintest.Node {
	for _, n := range append(append([]*chaintest.Node(nil), c.net.Miners...), c.net.Sharders...) {
		if n.ID == nodeID {
			return n
		}
	}
	return nil
}

// KillNode makes a node answer every request with 503.
func (c *Cluster) KillNode(nodeID string) error {
	n := c.GetNode(nodeID)
	if n == nil {
		return fmt.Errorf("node %s not found", nodeID)
	}
	n.SetDown(503)
	return nil
}

// RestartNode brings a killed node back.
func (c *Cluster) RestartNode(nodeID string) error {
	n := c.GetNode(nodeID)
	if n == nil {
		return fmt.Errorf("node %s not found", nodeID)
	}
	n.SetDown(0)
	return nil
}

// Stop closes every client created through the cluster. The network itself
// is shut down by its own test cleanup.
func (c *Cluster) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range c.clients {
		_ = cl.Close()
	}
	c.clients = nil
}

// RunCLI runs the zcnctl binary at binaryPath against the cluster and
// returns its combined output.
func (c *Cluster) RunCLI(ctx context.Context, binaryPath string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Env = append(os.Environ(),
		"ZCN_DOMAIN="+c.net.Domain(),
		"ZCN_REQUEST_TIMEOUT=2s",
	)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
