package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// CanonicalBytes serializes (kind, payload) into a deterministic byte form.
// The payload is round-tripped through JSON so that struct field order and
// map iteration order never influence the result: encoding/json emits map
// keys sorted, and the round trip reduces every payload to maps, slices and
// scalars first.
func CanonicalBytes(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, zerr.Wrap(err, ErrNotCanonicalizable.Error())
	}

	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, zerr.Wrap(err, ErrNotCanonicalizable.Error())
	}

	canon, err := json.Marshal(struct {
		Kind    string `json:"kind"`
		Payload any    `json:"payload"`
	}{Kind: kind, Payload: normalized})
	if err != nil {
		return nil, zerr.Wrap(err, ErrNotCanonicalizable.Error())
	}
	return canon, nil
}

// Fingerprint derives the cache key for a task: a SHA-256 hex digest over the
// canonical serialization of (kind, payload). Identical logical requests
// collide to the same fingerprint regardless of field ordering.
func Fingerprint(kind string, payload any) (string, error) {
	canon, err := CanonicalBytes(kind, payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// ShortID derives a compact 64-bit identifier from the same canonical form,
// for log lines and default task IDs where a full digest is noise.
func ShortID(kind string, payload any) (string, error) {
	canon, err := CanonicalBytes(kind, payload)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(canon), 16), nil
}
