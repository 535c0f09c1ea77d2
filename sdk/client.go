package sdk

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"zcnsdk/internal/config"
	"zcnsdk/internal/consensus"
	"zcnsdk/internal/directory"
	"zcnsdk/internal/engine"
	"zcnsdk/internal/fanout"
	"zcnsdk/internal/metrics"
	"zcnsdk/internal/signer"
	"zcnsdk/internal/txn"
)

var log = logging.Logger("zcn/sdk")

var (
	// ErrNoWallet is returned by operations that need a wallet when none is set.
	ErrNoWallet = errors.New("no wallet configured")
	// ErrNoEngine is returned by Engine when no storage engine is available.
	ErrNoEngine = errors.New("no storage engine configured")
)

// Client is a session against one network for one wallet. It owns the
// wallet's nonce and the node directory. A Client is safe for concurrent
// reads; transactions for its wallet must not be submitted concurrently.
type Client struct {
	cfg    config.Config
	wallet signer.Wallet

	httpClient *http.Client
	registerer prometheus.Registerer

	requester *fanout.Requester
	reader    *consensus.Reader
	directory *directory.Directory
	session   *txn.Session

	randMu sync.Mutex
	rand   *rand.Rand

	engine     engine.StorageEngine
	ownsEngine bool
	engineMu   sync.Mutex
	walletSent bool
}

// New creates a client. The configuration is validated before anything
// else; a missing domain without a static network fails here with
// config.ErrDomainRequired.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.registerer != nil {
		if err := metrics.Register(c.registerer); err != nil {
			return nil, xerrors.Errorf("register metrics: %w", err)
		}
	}

	c.requester = fanout.NewRequester(c.httpClient, time.Duration(cfg.RequestTimeout))
	c.reader = consensus.NewReader(c.requester, cfg.ConsensusPercentage)
	c.directory = directory.New(cfg, c.requester)
	c.session = txn.NewSession(txn.SessionConfig{
		Wallet:      c.wallet,
		Broadcaster: txn.NewBroadcaster(c.requester, cfg.ConsensusPercentage),
		Miners:      c.miners,
		LoadNonce:   c.loadNonce,
		Fee:         cfg.TransactionFee,
		Version:     cfg.TransactionVersion,
	})

	if c.engine == nil && cfg.EngineAddr != "" {
		e, err := engine.Dial(cfg.EngineAddr)
		if err != nil {
			return nil, err
		}
		c.engine = e
		c.ownsEngine = true
	}

	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() config.Config {
	return c.cfg
}

// Wallet returns the client's wallet; it is zero if none was set.
func (c *Client) Wallet() signer.Wallet {
	return c.wallet
}

// Network returns the current miners and sharders.
func (c *Client) Network(ctx context.Context) (directory.Network, error) {
	return c.directory.Discover(ctx)
}

// GetConsensusedInformationFromSharders queries every sharder at path and
// returns the answer enough of them agree on, transformed by parser if one
// is given. Without a parser the agreed JSON is returned as
// json.RawMessage.
func (c *Client) GetConsensusedInformationFromSharders(ctx context.Context, sharders []string, path string, params url.Values, parser consensus.Parser) (any, error) {
	return c.reader.Query(ctx, sharders, consensus.Query{
		Class:  directory.Sharders,
		Path:   path,
		Params: params,
		Parser: parser,
	})
}

// SendTransaction transfers value (in SAS) to the client to.
func (c *Client) SendTransaction(ctx context.Context, to string, value int64, note string) (*txn.Response, error) {
	return c.SubmitTransaction(ctx, to, value, note, txn.TypeSend)
}

// SubmitTransaction signs and broadcasts a transaction of the given type.
// The wallet nonce advances only if the miners accept it.
func (c *Client) SubmitTransaction(ctx context.Context, to string, value int64, note string, typ txn.Type) (*txn.Response, error) {
	if c.wallet.IsZero() {
		return nil, ErrNoWallet
	}
	return c.session.Send(ctx, to, value, note, typ)
}

// ExecuteSmartContract calls method of the smart contract at address.
func (c *Client) ExecuteSmartContract(ctx context.Context, address, method string, input any, value int64) (*txn.Response, error) {
	if c.wallet.IsZero() {
		return nil, ErrNoWallet
	}
	return c.session.ExecuteSmartContract(ctx, address, method, input, value)
}

// Nonce returns the last nonce accepted for the wallet in this session.
func (c *Client) Nonce() int64 {
	return c.session.Nonce()
}

// Engine waits for the storage engine to become ready and hands it the
// wallet identity the first time.
func (c *Client) Engine(ctx context.Context) (engine.StorageEngine, error) {
	if c.engine == nil {
		return nil, ErrNoEngine
	}
	if err := engine.WaitReady(ctx, c.engine, time.Duration(c.cfg.EngineInitTimeout)); err != nil {
		return nil, err
	}

	c.engineMu.Lock()
	defer c.engineMu.Unlock()
	if !c.walletSent && !c.wallet.IsZero() {
		id := engine.Identity{
			ClientID:  c.wallet.ClientID,
			PublicKey: c.wallet.PublicKey,
			Scheme:    c.wallet.Signer.Scheme(),
		}
		if err := c.engine.SetWallet(ctx, id); err != nil {
			return nil, xerrors.Errorf("set engine wallet: %w", err)
		}
		c.walletSent = true
	}
	return c.engine, nil
}

// Close releases the engine connection if the client opened it.
func (c *Client) Close() error {
	c.directory.Purge()
	if c.ownsEngine && c.engine != nil {
		return c.engine.Close()
	}
	return nil
}

func (c *Client) miners(ctx context.Context) ([]string, error) {
	n, err := c.Network(ctx)
	if err != nil {
		return nil, err
	}
	return n.Miners, nil
}

func (c *Client) loadNonce(ctx context.Context) (int64, error) {
	b, err := c.GetBalance(ctx, c.wallet.ClientID)
	if err != nil {
		return 0, err
	}
	log.Debugw("loaded nonce", "client", c.wallet.ClientID, "nonce", b.Nonce)
	return b.Nonce, nil
}

func (c *Client) shuffle(endpoints []string) []string {
	if c.rand == nil {
		return directory.Shuffle(endpoints, nil)
	}
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return directory.Shuffle(endpoints, c.rand)
}
