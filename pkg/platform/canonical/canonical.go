// Package canonical produces RFC 8785 (JSON Canonicalization Scheme) bytes and
// SHA-256 digests for anything the ledger or the reasoning engine hashes.
//
// Two values that marshal to the same JSON document always produce the same
// digest, regardless of map iteration order or float formatting. Strings are
// NFC-normalized so visually identical identifiers hash identically.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// Bytes returns the canonical JSON encoding of v.
func Bytes(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	return Transform(raw)
}

// Transform canonicalizes an already-encoded JSON document.
func Transform(raw []byte) ([]byte, error) {
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return norm.NFC.Bytes(out), nil
}

// Hash returns the hex-encoded SHA-256 digest of the canonical encoding of v.
func Hash(v any) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the hex-encoded SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashStrings hashes the concatenation of parts separated by a unit separator,
// so ("ab","c") and ("a","bc") never collide.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write(norm.NFC.Bytes([]byte(p)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
