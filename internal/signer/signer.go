package signer

import (
	"context"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Signer signs byte digests on behalf of a wallet. Implementations may be
// backed by remote key stores, so Sign takes a context.
type Signer interface {
	Sign(ctx context.Context, digest []byte) ([]byte, error)
	PublicKey() []byte
	Scheme() string
}

// Verifier checks signatures produced by a Signer of the same scheme.
type Verifier interface {
	Verify(pubKey, digest, sig []byte) bool
}

// Wallet is the identity transactions are issued under.
type Wallet struct {
	ClientID  string
	PublicKey string
	Signer    Signer
}

// NewWallet derives the wallet identity from s.
func NewWallet(s Signer) Wallet {
	pub := s.PublicKey()
	return Wallet{
		ClientID:  ClientID(pub),
		PublicKey: hex.EncodeToString(pub),
		Signer:    s,
	}
}

// IsZero reports whether w has no signer.
func (w Wallet) IsZero() bool {
	return w.Signer == nil
}

// ClientID returns the hex sha3-256 of a public key.
func ClientID(pubKey []byte) string {
	sum := sha3.Sum256(pubKey)
	return hex.EncodeToString(sum[:])
}

// VerifierFor returns the verifier for a signature scheme, or nil.
func VerifierFor(scheme string) Verifier {
	switch scheme {
	case SchemeBLS:
		return BLSVerifier{}
	case SchemeEd25519:
		return Ed25519Verifier{}
	default:
		return nil
	}
}
