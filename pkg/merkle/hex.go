package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrMalformedHex is returned when a digest is not valid hex (bad characters or odd length).
var ErrMalformedHex = errors.New("malformed hex digest")

// DecodeHex converts a hex-encoded digest into raw bytes.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrMalformedHex, s, err)
	}
	return b, nil
}

// HashHex returns the lowercase hex encoding of SHA-256(data).
// Callers use it to turn raw items into leaf digests.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EmptyRoot is the root of a tree built from zero leaves: hex(SHA-256("")).
func EmptyRoot() string {
	return HashHex(nil)
}

// CombineHex computes hex(SHA-256(decode(left) || decode(right))).
// This is the only primitive used to derive non-leaf nodes.
func CombineHex(left, right string) (string, error) {
	l, err := DecodeHex(left)
	if err != nil {
		return "", err
	}
	r, err := DecodeHex(right)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(hashPair(l, r)), nil
}

// hashPair computes sha256(left || right).
func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
