package txn

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"

	"zcnsdk/internal/signer"
)

// Type is the transaction type tag.
type Type int

const (
	TypeSend          Type = 0
	TypeData          Type = 10
	TypeSmartContract Type = 1000
)

const (
	// DefaultFee is attached to every transaction unless configured otherwise.
	DefaultFee = 1000000
	// DefaultVersion is the transaction record version.
	DefaultVersion = "1.0"
)

// Status is the lifecycle state of a transaction.
type Status int

const (
	Built Status = iota
	Signed
	Submitted
	Accepted
	Rejected
)

func (s Status) String() string {
	switch s {
	case Built:
		return "built"
	case Signed:
		return "signed"
	case Submitted:
		return "submitted"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Accepted || s == Rejected
}

var transitions = map[Status][]Status{
	Built:     {Signed},
	Signed:    {Submitted},
	Submitted: {Accepted, Rejected},
}

// Transaction is the record submitted to miners.
type Transaction struct {
	ClientID     string `json:"client_id"`
	ToClientID   string `json:"to_client_id"`
	Value        int64  `json:"transaction_value"`
	Data         string `json:"transaction_data"`
	Type         Type   `json:"transaction_type"`
	Nonce        int64  `json:"transaction_nonce"`
	CreationDate int64  `json:"creation_date"`
	Fee          int64  `json:"transaction_fee"`
	Hash         string `json:"hash"`
	Signature    string `json:"signature"`
	PublicKey    string `json:"public_key"`
	Version      string `json:"version"`
	OutputHash   string `json:"txn_output_hash"`

	status Status
}

// Params are the caller-chosen fields of a new transaction.
type Params struct {
	To           string
	Value        int64
	Data         string
	Type         Type
	Nonce        int64
	CreationDate int64
	Fee          int64
	Version      string
}

// New builds an unsigned transaction for wallet.
func New(wallet signer.Wallet, p Params) *Transaction {
	if p.Version == "" {
		p.Version = DefaultVersion
	}
	return &Transaction{
		ClientID:     wallet.ClientID,
		ToClientID:   p.To,
		Value:        p.Value,
		Data:         p.Data,
		Type:         p.Type,
		Nonce:        p.Nonce,
		CreationDate: p.CreationDate,
		Fee:          p.Fee,
		PublicKey:    wallet.PublicKey,
		Version:      p.Version,
		status:       Built,
	}
}

// Status returns the lifecycle state of t.
func (t *Transaction) Status() Status {
	return t.status
}

func (t *Transaction) transition(to Status) error {
	for _, next := range transitions[t.status] {
		if next == to {
			t.status = to
			return nil
		}
	}
	return xerrors.Errorf("transaction %s: invalid transition %s -> %s", t.Hash, t.status, to)
}

// ComputeHash returns
//
//	sha3(creation_date:nonce:client_id:to_client_id:value:sha3(data))
//
// hex encoded.
func (t *Transaction) ComputeHash() string {
	dataHash := sha3.Sum256([]byte(t.Data))
	pre := strconv.FormatInt(t.CreationDate, 10) + ":" +
		strconv.FormatInt(t.Nonce, 10) + ":" +
		t.ClientID + ":" +
		t.ToClientID + ":" +
		strconv.FormatInt(t.Value, 10) + ":" +
		hex.EncodeToString(dataHash[:])
	sum := sha3.Sum256([]byte(pre))
	return hex.EncodeToString(sum[:])
}

// Sign computes the hash and signs its raw bytes with s.
func (t *Transaction) Sign(ctx context.Context, s signer.Signer) error {
	if t.status != Built {
		return xerrors.Errorf("sign: transaction is %s", t.status)
	}

	t.Hash = t.ComputeHash()
	digest, err := hex.DecodeString(t.Hash)
	if err != nil {
		return xerrors.Errorf("decode hash: %w", err)
	}

	sig, err := s.Sign(ctx, digest)
	if err != nil {
		return xerrors.Errorf("sign transaction %s: %w", t.Hash, err)
	}
	t.Signature = hex.EncodeToString(sig)
	if t.PublicKey == "" {
		t.PublicKey = hex.EncodeToString(s.PublicKey())
	}
	return t.transition(Signed)
}

// Verify checks the hash and signature of t with v.
func (t *Transaction) Verify(v signer.Verifier) bool {
	if t.Hash != t.ComputeHash() {
		return false
	}
	pub, err := hex.DecodeString(t.PublicKey)
	if err != nil {
		return false
	}
	digest, err := hex.DecodeString(t.Hash)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(t.Signature)
	if err != nil {
		return false
	}
	return v.Verify(pub, digest, sig)
}

// Version is a transaction version as reported by miners, which send it
// either as a string or as a number.
type Version string

func (v *Version) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = Version(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return xerrors.Errorf("version: %w", err)
	}
	*v = Version(n.String())
	return nil
}

// Response is the transaction record returned by the accepting miner.
// ToClientID and OutputHash are nil, and encode as null, when the miner
// omitted them.
type Response struct {
	Hash         string          `json:"hash"`
	Version      Version         `json:"version"`
	ClientID     string          `json:"client_id"`
	ToClientID   *string         `json:"to_client_id"`
	ChainID      json.RawMessage `json:"chain_id,omitempty"`
	Data         string          `json:"transaction_data"`
	Value        int64           `json:"transaction_value"`
	Signature    string          `json:"signature"`
	CreationDate int64           `json:"creation_date"`
	Type         Type            `json:"transaction_type"`
	Nonce        int64           `json:"transaction_nonce,omitempty"`
	Fee          int64           `json:"transaction_fee,omitempty"`
	Output       string          `json:"transaction_output,omitempty"`
	OutputHash   *string         `json:"txn_output_hash"`

	// Raw is the entity exactly as the miner sent it, including fields
	// Response does not model.
	Raw json.RawMessage `json:"-"`
}

// parseResponse reads the accepted transaction from a miner's reply, which
// wraps it in an "entity" field.
func parseResponse(payload json.RawMessage) (*Response, error) {
	var wrapper struct {
		Entity json.RawMessage `json:"entity"`
	}
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return nil, xerrors.Errorf("decode miner response: %w", err)
	}
	body := wrapper.Entity
	if len(body) == 0 || string(body) == "null" {
		body = payload
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, xerrors.Errorf("decode transaction entity: %w", err)
	}
	resp.Raw = append(json.RawMessage(nil), body...)
	return &resp, nil
}
