package consensus

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"

	"zcnsdk/internal/fanout"
)

// Canonicalize re-encodes a JSON document with object keys sorted and
// insignificant whitespace removed. Numbers keep their literal form.
func Canonicalize(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, xerrors.Errorf("decode payload: %w", err)
	}
	if dec.More() {
		return nil, xerrors.New("decode payload: trailing data")
	}

	out, err := json.Marshal(v)
	if err != nil {
		return nil, xerrors.Errorf("encode payload: %w", err)
	}
	return out, nil
}

// Digest returns the hex sha3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// digestOf fills in env.Digest if it is not already set.
//
// Successful envelopes are digested over their canonical payload. Failed
// envelopes are digested over the JSON error body when the node answered
// 400 with one, and over the error code otherwise.
func digestOf(env fanout.Envelope) (fanout.Envelope, bool) {
	if env.Digest != "" {
		return env, true
	}
	if env.OK || env.HasErrorBody() {
		canonical, err := Canonicalize(env.Payload)
		if err != nil {
			if env.OK {
				return env, false
			}
			env.Digest = Digest([]byte(env.Code))
			return env, true
		}
		env.Digest = Digest(canonical)
		return env, true
	}
	env.Digest = Digest([]byte(env.Code))
	return env, true
}
