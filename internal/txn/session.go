package txn

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/xerrors"

	"zcnsdk/internal/signer"
)

// MinersFunc returns the miners a transaction is broadcast to.
type MinersFunc func(ctx context.Context) ([]string, error)

// SessionConfig configures a Session.
type SessionConfig struct {
	Wallet      signer.Wallet
	Broadcaster *Broadcaster
	Miners      MinersFunc
	LoadNonce   NonceLoader

	Fee     int64
	Version string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session issues transactions for one wallet and owns its nonce.
type Session struct {
	cfg   SessionConfig
	nonce NonceTracker
}

// NewSession creates a session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	return &Session{cfg: cfg}
}

// Wallet returns the session's wallet.
func (s *Session) Wallet() signer.Wallet {
	return s.cfg.Wallet
}

// Nonce returns the last accepted nonce, or 0 before the first transaction.
func (s *Session) Nonce() int64 {
	n, _ := s.nonce.Current()
	return n
}

// Send builds, signs and submits a transaction. The nonce advances only if
// the transaction is accepted.
func (s *Session) Send(ctx context.Context, to string, value int64, data string, typ Type) (*Response, error) {
	if s.cfg.Wallet.IsZero() {
		return nil, xerrors.New("send transaction: no wallet")
	}

	nonce := s.nonce.Next(ctx, s.cfg.LoadNonce)
	tx := New(s.cfg.Wallet, Params{
		To:           to,
		Value:        value,
		Data:         data,
		Type:         typ,
		Nonce:        nonce,
		CreationDate: s.cfg.Now().Unix(),
		Fee:          s.cfg.Fee,
		Version:      s.cfg.Version,
	})
	if err := tx.Sign(ctx, s.cfg.Wallet.Signer); err != nil {
		return nil, err
	}

	miners, err := s.cfg.Miners(ctx)
	if err != nil {
		return nil, xerrors.Errorf("resolve miners: %w", err)
	}

	resp, err := s.cfg.Broadcaster.Submit(ctx, tx, miners)
	if err != nil {
		return nil, err
	}
	s.nonce.Advance(nonce)
	return resp, nil
}

type smartContractData struct {
	Name  string `json:"name"`
	Input any    `json:"input"`
}

// ExecuteSmartContract calls method on the smart contract at address.
func (s *Session) ExecuteSmartContract(ctx context.Context, address, method string, input any, value int64) (*Response, error) {
	if input == nil {
		input = map[string]any{}
	}
	data, err := json.Marshal(smartContractData{Name: method, Input: input})
	if err != nil {
		return nil, xerrors.Errorf("encode smart contract input: %w", err)
	}
	return s.Send(ctx, address, value, string(data), TypeSmartContract)
}
