// Package signing implements the deterministic HMAC-over-canonical-JSON
// signing utility used to issue and verify tamper-evident charge tokens and
// account-resolution tokens (spec §4.3).
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Signer issues and verifies HMAC-SHA256 signatures over a canonicalized
// JSON payload. A process holds two distinct Signers: one keyed by
// CHARGE_REQ_KEY, one by ACCOUNT_VALIDATION_KEY (spec §4.3).
type Signer struct {
	key []byte
}

// New builds a Signer holding the given secret key.
func New(key string) *Signer {
	return &Signer{key: []byte(key)}
}

// Sign canonicalizes payload (sorted keys, UTF-8 JSON) and returns the hex
// digest of its HMAC-SHA256 under the signer's key.
func (s *Signer) Sign(payload map[string]any) (string, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature is the correct HMAC over payload. It
// does not mutate payload; callers are expected to have already popped any
// "signature" key out of the map before calling, matching spec §4.3's
// "after popping signature" verification step.
func (s *Signer) Verify(payload map[string]any, signature string) (bool, error) {
	expected, err := s.Sign(payload)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// canonicalize renders payload as JSON with lexicographically sorted keys,
// so signing is insensitive to the input map's iteration order (spec §8
// round-trip property: "Signing is insensitive to key ordering").
func canonicalize(payload map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(payload[k])
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, keyJSON...)
		ordered = append(ordered, ':')
		ordered = append(ordered, valJSON...)
	}
	ordered = append(ordered, '}')
	return ordered, nil
}
