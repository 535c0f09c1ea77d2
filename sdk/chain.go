package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jpillora/backoff"
	"golang.org/x/xerrors"

	"zcnsdk/internal/consensus"
	"zcnsdk/internal/directory"
	"zcnsdk/internal/txn"
)

// Node paths.
const (
	PathBalance                 = "/v1/client/get/balance"
	PathPutTransaction          = txn.PathPutTransaction
	PathTransactionConfirmation = "/v1/transaction/get/confirmation"
	PathLatestFinalizedBlock    = "/v1/block/get/latest_finalized"
	PathChainStats              = "/v1/chain/get/stats"
	PathClient                  = "/v1/client/get"
)

// Balance is a client's balance in SAS and the last nonce the chain has
// recorded for it.
type Balance struct {
	ClientID string `json:"client_id,omitempty"`
	Balance  int64  `json:"balance"`
	Nonce    int64  `json:"nonce,omitempty"`
	Round    int64  `json:"round,omitempty"`
}

// Confirmation is a sharder's record of a confirmed transaction.
type Confirmation struct {
	Hash         string          `json:"hash"`
	BlockHash    string          `json:"block_hash"`
	Round        int64           `json:"round"`
	CreationDate int64           `json:"creation_date"`
	Status       int             `json:"transaction_status"`
	Txn          json.RawMessage `json:"txn,omitempty"`
}

// Block identifies a finalized block.
type Block struct {
	Hash         string `json:"hash"`
	Round        int64  `json:"round"`
	CreationDate int64  `json:"creation_date,omitempty"`
}

// ClientInfo is the registered identity of a client.
type ClientInfo struct {
	ID        string `json:"id"`
	PublicKey string `json:"public_key"`
}

// GetBalance returns the balance of clientID, or of the wallet when clientID
// is empty. A client the sharders agree has no recorded state has a zero
// balance; any other disagreement or error is returned.
func (c *Client) GetBalance(ctx context.Context, clientID string) (Balance, error) {
	if clientID == "" {
		if c.wallet.IsZero() {
			return Balance{}, ErrNoWallet
		}
		clientID = c.wallet.ClientID
	}

	net, err := c.Network(ctx)
	if err != nil {
		return Balance{}, err
	}

	b, err := consensus.Decode[Balance](ctx, c.reader, net.Sharders, consensus.Query{
		Class:  directory.Sharders,
		Path:   PathBalance,
		Params: url.Values{"client_id": {clientID}},
	})
	if consensus.IsValueNotPresent(err) {
		return Balance{ClientID: clientID, Balance: 0}, nil
	}
	if err != nil {
		return Balance{}, xerrors.Errorf("get balance of %s: %w", clientID, err)
	}
	return b, nil
}

// GetTransactionConfirmation returns the confirmation the sharders agree on
// for hash.
func (c *Client) GetTransactionConfirmation(ctx context.Context, hash string) (Confirmation, error) {
	net, err := c.Network(ctx)
	if err != nil {
		return Confirmation{}, err
	}
	return consensus.Decode[Confirmation](ctx, c.reader, net.Sharders, consensus.Query{
		Class:  directory.Sharders,
		Path:   PathTransactionConfirmation,
		Params: url.Values{"hash": {hash}, "content": {"lfb"}},
	})
}

// VerifyTransaction polls for the confirmation of hash until the sharders
// agree on one or Config.ConfirmationTimeout passes.
func (c *Client) VerifyTransaction(ctx context.Context, hash string) (Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.ConfirmationTimeout))
	defer cancel()

	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
	}
	for {
		conf, err := c.GetTransactionConfirmation(ctx, hash)
		if err == nil {
			return conf, nil
		}
		log.Debugw("transaction not confirmed yet", "hash", hash, "attempts", b.Attempt(), "err", err)

		select {
		case <-ctx.Done():
			return Confirmation{}, xerrors.Errorf("verify transaction %s: %w", hash, err)
		case <-time.After(b.Duration()):
		}
	}
}

// GetLatestFinalizedBlock returns the latest block the sharders agree on.
func (c *Client) GetLatestFinalizedBlock(ctx context.Context) (Block, error) {
	net, err := c.Network(ctx)
	if err != nil {
		return Block{}, err
	}
	return consensus.Decode[Block](ctx, c.reader, net.Sharders, consensus.Query{
		Class: directory.Sharders,
		Path:  PathLatestFinalizedBlock,
	})
}

// GetChainStats returns the chain statistics the sharders agree on.
func (c *Client) GetChainStats(ctx context.Context) (json.RawMessage, error) {
	net, err := c.Network(ctx)
	if err != nil {
		return nil, err
	}
	return consensus.Decode[json.RawMessage](ctx, c.reader, net.Sharders, consensus.Query{
		Class: directory.Sharders,
		Path:  PathChainStats,
	})
}

// GetClientInfo returns the registered public key of a client.
func (c *Client) GetClientInfo(ctx context.Context, clientID string) (ClientInfo, error) {
	net, err := c.Network(ctx)
	if err != nil {
		return ClientInfo{}, err
	}
	return consensus.Decode[ClientInfo](ctx, c.reader, net.Sharders, consensus.Query{
		Class:  directory.Sharders,
		Path:   PathClient,
		Params: url.Values{"id": {clientID}},
	})
}

// GetFromRandomMiner asks the miners one at a time, in random order, and
// returns the first 200 response. It does not use consensus.
func (c *Client) GetFromRandomMiner(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	net, err := c.Network(ctx)
	if err != nil {
		return nil, err
	}

	var merr *multierror.Error
	for _, m := range c.shuffle(net.Miners) {
		env := c.requester.Get(path, params)(ctx, m)
		if env.OK && env.Status == http.StatusOK {
			return env.Payload, nil
		}
		merr = multierror.Append(merr, env.Err)
		if ctx.Err() != nil {
			break
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, xerrors.Errorf("get %s from miners: %w", path, err)
	}
	return nil, xerrors.Errorf("get %s from miners: no miner answered", path)
}
