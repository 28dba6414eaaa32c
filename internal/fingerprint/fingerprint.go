// Package fingerprint computes the content hashes stored in the script ledger.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Algorithm names the digest recorded in the ledger's hash column.
const Algorithm = "sha256"

// Size is the length of a hex-encoded fingerprint.
const Size = sha256.Size * 2

// Sum returns the hex-encoded SHA-256 digest of b.
// The input must be the exact on-disk bytes of a script; callers must not
// trim or re-encode it first.
func Sum(b []byte) string {
	h := sha256.Sum256(b)

	return hex.EncodeToString(h[:])
}

// Equal reports whether two fingerprints match.
func Equal(a, b string) bool {
	return a == b
}
