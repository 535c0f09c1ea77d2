package signer

import (
	"context"
	"crypto/ed25519"

	"golang.org/x/xerrors"
)

// SchemeEd25519 is plain ed25519.
const SchemeEd25519 = "ed25519"

// Ed25519Signer signs with an ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519Signer derives the key from a 32 byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, xerrors.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *Ed25519Signer) Sign(_ context.Context, digest []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, digest), nil
}

func (s *Ed25519Signer) PublicKey() []byte {
	return s.priv.Public().(ed25519.PublicKey)
}

func (s *Ed25519Signer) Scheme() string {
	return SchemeEd25519
}

// Ed25519Verifier verifies Ed25519Signer signatures.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(pubKey, digest, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pubKey, digest, sig)
}
