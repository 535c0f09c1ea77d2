package signer

import (
	"context"

	blst "github.com/supranational/blst/bindings/go"
	"golang.org/x/xerrors"
)

// SchemeBLS is the minimized-signature BLS12-381 scheme: signatures on G1,
// public keys on G2.
const SchemeBLS = "bls-minsig"

// domainSeparationTag is the ciphersuite ID for the basic scheme with
// hash-to-G1 (RFC 9380, draft-irtf-cfrg-bls-signature-05 section 4.1).
var domainSeparationTag = []byte("BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_")

// BLSSigner signs with a BLS secret key.
type BLSSigner struct {
	secret blst.SecretKey
	point  blst.P2Affine
}

// NewBLSSigner derives a key from ikm, which must be at least 32 bytes of
// cryptographically random input.
func NewBLSSigner(ikm []byte) (*BLSSigner, error) {
	if len(ikm) < blst.BLST_SCALAR_BYTES {
		return nil, xerrors.Errorf("ikm too short: got %d bytes, need at least %d", len(ikm), blst.BLST_SCALAR_BYTES)
	}
	secret := blst.KeyGen(ikm)
	if secret == nil {
		return nil, xerrors.New("derive bls key")
	}
	point := new(blst.P2Affine).From(secret)

	return &BLSSigner{
		secret: *secret,
		point:  *point,
	}, nil
}

// Sign returns the compressed G1 signature of digest.
func (s *BLSSigner) Sign(_ context.Context, digest []byte) ([]byte, error) {
	sig := new(blst.P1Affine).Sign(&s.secret, digest, domainSeparationTag, true)
	if sig == nil {
		return nil, xerrors.New("bls sign failed")
	}
	return sig.Compress(), nil
}

// PublicKey returns the compressed G2 public key.
func (s *BLSSigner) PublicKey() []byte {
	return s.point.Compress()
}

func (s *BLSSigner) Scheme() string {
	return SchemeBLS
}

// BLSVerifier verifies BLSSigner signatures.
type BLSVerifier struct{}

func (BLSVerifier) Verify(pubKey, digest, sig []byte) bool {
	if len(pubKey) != blst.BLST_P2_COMPRESS_BYTES {
		return false
	}
	pk := new(blst.P2Affine).Uncompress(pubKey)
	if pk == nil || !pk.KeyValidate() {
		return false
	}

	s := new(blst.P1Affine).Uncompress(sig)
	if s == nil || !s.SigValidate(false) {
		return false
	}
	return s.Verify(false, pk, false, blst.Message(digest), domainSeparationTag)
}
