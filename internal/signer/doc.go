// Package signer defines the signing capability transactions are signed
// with, and adapters for BLS (blst) and ed25519 keys.
package signer
