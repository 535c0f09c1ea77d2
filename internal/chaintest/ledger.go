package chaintest

import (
	"encoding/json"
	"sync"

	"golang.org/x/xerrors"
)

// Account is the state a sharder reports for a client.
type Account struct {
	ClientID string `json:"client_id"`
	Balance  int64  `json:"balance"`
	Nonce    int64  `json:"nonce"`
	Round    int64  `json:"round"`
}

// Txn is the subset of a posted transaction the ledger needs.
type Txn struct {
	Hash         string `json:"hash"`
	ClientID     string `json:"client_id"`
	ToClientID   string `json:"to_client_id"`
	Value        int64  `json:"transaction_value"`
	Data         string `json:"transaction_data"`
	Type         int    `json:"transaction_type"`
	Nonce        int64  `json:"transaction_nonce"`
	CreationDate int64  `json:"creation_date"`
	Fee          int64  `json:"transaction_fee"`
	Signature    string `json:"signature"`
	PublicKey    string `json:"public_key"`
	Version      string `json:"version"`
	OutputHash   string `json:"txn_output_hash"`
}

type confirmed struct {
	txn   Txn
	raw   json.RawMessage
	round int64
}

// Ledger is the chain state shared by every node of a Network. Miners write
// to it and sharders read from it, so all honest nodes agree.
type Ledger struct {
	mu       sync.Mutex
	round    int64
	accounts map[string]*Account
	keys     map[string]string
	txns     map[string]confirmed
	order    []string
}

// NewLedger creates an empty ledger at round 1.
func NewLedger() *Ledger {
	return &Ledger{
		round:    1,
		accounts: make(map[string]*Account),
		keys:     make(map[string]string),
		txns:     make(map[string]confirmed),
	}
}

// Fund credits balance to clientID, creating the account if needed.
func (l *Ledger) Fund(clientID string, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account(clientID).Balance += balance
}

// SetNonce overwrites the recorded nonce of clientID.
func (l *Ledger) SetNonce(clientID string, nonce int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account(clientID).Nonce = nonce
}

// Account returns a copy of the account, if it exists.
func (l *Ledger) Account(clientID string) (Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[clientID]
	if !ok {
		return Account{}, false
	}
	out := *a
	out.Round = l.round
	return out, true
}

// Txns returns the number of confirmed transactions.
func (l *Ledger) Txns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Round returns the latest finalized round.
func (l *Ledger) Round() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.round
}

func (l *Ledger) account(clientID string) *Account {
	a, ok := l.accounts[clientID]
	if !ok {
		a = &Account{ClientID: clientID}
		l.accounts[clientID] = a
	}
	return a
}

var (
	errInvalidNonce        = xerrors.New("invalid transaction nonce")
	errInsufficientBalance = xerrors.New("insufficient balance")
)

// apply confirms a posted transaction. Posting a transaction that is already
// confirmed is a no-op, since every miner receives the same one.
func (l *Ledger) apply(raw json.RawMessage) (Txn, error) {
	var tx Txn
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Txn{}, xerrors.Errorf("decode transaction: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.txns[tx.Hash]; ok {
		return c.txn, nil
	}

	from := l.account(tx.ClientID)
	if tx.Nonce != from.Nonce+1 {
		return Txn{}, errInvalidNonce
	}
	if tx.Value > from.Balance {
		return Txn{}, errInsufficientBalance
	}

	from.Nonce = tx.Nonce
	from.Balance -= tx.Value
	if tx.ToClientID != "" && tx.Value > 0 {
		l.account(tx.ToClientID).Balance += tx.Value
	}
	if tx.PublicKey != "" {
		l.keys[tx.ClientID] = tx.PublicKey
	}

	l.round++
	l.txns[tx.Hash] = confirmed{txn: tx, raw: raw, round: l.round}
	l.order = append(l.order, tx.Hash)
	return tx, nil
}

func (l *Ledger) confirmation(hash string) (map[string]any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.txns[hash]
	if !ok {
		return nil, false
	}
	return map[string]any{
		"version":            "1.0",
		"hash":               c.txn.Hash,
		"block_hash":         blockHash(c.round),
		"round":              c.round,
		"creation_date":      c.txn.CreationDate,
		"txn":                c.raw,
		"transaction_status": 1,
	}, true
}

func (l *Ledger) latestBlock() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]any{
		"hash":  blockHash(l.round),
		"round": l.round,
	}
}

func (l *Ledger) publicKey(clientID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.keys[clientID]
	return k, ok
}
