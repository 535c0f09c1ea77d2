package txn

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"zcnsdk/internal/signer"
)

func testWallet(t *testing.T) signer.Wallet {
	t.Helper()
	s, err := signer.NewBLSSigner(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	return signer.NewWallet(s)
}

func TestTransaction_ComputeHash(t *testing.T) {
	tx := &Transaction{
		ClientID:     "from",
		ToClientID:   "to",
		Value:        100,
		Data:         "note",
		Nonce:        3,
		CreationDate: 1700000000,
	}

	note := sha3.Sum256([]byte("note"))
	want := sha3.Sum256([]byte("1700000000:3:from:to:100:" + hex.EncodeToString(note[:])))

	assert.Equal(t, hex.EncodeToString(want[:]), tx.ComputeHash())
}

func TestTransaction_SignAndVerify(t *testing.T) {
	w := testWallet(t)
	tx := New(w, Params{To: "to", Value: 5, Data: "hi", Nonce: 1, CreationDate: 1, Fee: DefaultFee})

	require.Equal(t, Built, tx.Status())
	require.NoError(t, tx.Sign(context.Background(), w.Signer))
	assert.Equal(t, Signed, tx.Status())
	assert.Equal(t, tx.ComputeHash(), tx.Hash)
	assert.Equal(t, DefaultVersion, tx.Version)
	assert.Equal(t, w.PublicKey, tx.PublicKey)
	assert.True(t, tx.Verify(signer.BLSVerifier{}))

	tampered := *tx
	tampered.Value = 6
	assert.False(t, tampered.Verify(signer.BLSVerifier{}))

	// Signing twice is not a valid transition.
	require.Error(t, tx.Sign(context.Background(), w.Signer))
}

func TestTransaction_JSONFields(t *testing.T) {
	w := testWallet(t)
	tx := New(w, Params{To: "to", Value: 5, Data: "hi", Type: TypeData, Nonce: 2, CreationDate: 7, Fee: DefaultFee})
	require.NoError(t, tx.Sign(context.Background(), w.Signer))

	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, k := range []string{
		"client_id", "to_client_id", "transaction_value", "transaction_data",
		"transaction_type", "transaction_nonce", "creation_date", "transaction_fee",
		"hash", "signature", "public_key", "version", "txn_output_hash",
	} {
		assert.Contains(t, m, k)
	}
	assert.EqualValues(t, 10, m["transaction_type"])
	assert.EqualValues(t, 1000000, m["transaction_fee"])
	assert.Equal(t, "", m["txn_output_hash"])
	assert.Len(t, m, 13)
}

func TestStatus_Transitions(t *testing.T) {
	tx := &Transaction{status: Built}
	require.Error(t, tx.transition(Submitted))
	require.NoError(t, tx.transition(Signed))
	require.NoError(t, tx.transition(Submitted))
	require.NoError(t, tx.transition(Rejected))
	assert.True(t, tx.Status().Terminal())
	require.Error(t, tx.transition(Accepted))
	assert.Equal(t, "rejected", tx.Status().String())
}

func TestParseResponse_NullableFields(t *testing.T) {
	resp, err := parseResponse(json.RawMessage(`{"entity":{"hash":"h","version":"1.0","client_id":"c","transaction_value":5}}`))
	require.NoError(t, err)
	assert.Equal(t, "h", resp.Hash)
	assert.Nil(t, resp.ToClientID)
	assert.Nil(t, resp.OutputHash)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Contains(t, m, "to_client_id")
	assert.Nil(t, m["to_client_id"])
	assert.Nil(t, m["txn_output_hash"])

	resp, err = parseResponse(json.RawMessage(`{"entity":{"hash":"h","version":1,"to_client_id":"t","txn_output_hash":"o"}}`))
	require.NoError(t, err)
	require.NotNil(t, resp.ToClientID)
	assert.Equal(t, "t", *resp.ToClientID)
	assert.Equal(t, "o", *resp.OutputHash)
	assert.Equal(t, Version("1"), resp.Version)
}

func TestParseResponse_Unwrapped(t *testing.T) {
	resp, err := parseResponse(json.RawMessage(`{"hash":"h"}`))
	require.NoError(t, err)
	assert.Equal(t, "h", resp.Hash)
	assert.JSONEq(t, `{"hash":"h"}`, string(resp.Raw))
}

func TestParseResponse_KeepsUnmodeledFields(t *testing.T) {
	resp, err := parseResponse(json.RawMessage(`{"async":true,"entity":{"hash":"h","block_hash":"b","fee_details":{"burn":3}}}`))
	require.NoError(t, err)
	assert.Equal(t, "h", resp.Hash)

	var entity map[string]any
	require.NoError(t, json.Unmarshal(resp.Raw, &entity))
	assert.Equal(t, "b", entity["block_hash"])
	assert.Equal(t, map[string]any{"burn": float64(3)}, entity["fee_details"])
	assert.NotContains(t, entity, "async")

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "fee_details")
}
