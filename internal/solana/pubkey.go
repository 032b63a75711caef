package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// DecodePubkey decodes a base58 public key, enforcing the 32-byte length.
func DecodePubkey(s string) ([32]byte, error) {
	var key [32]byte

	raw, err := base58.Decode(s)
	if err != nil {
		return key, fmt.Errorf("decode base58 pubkey: %w", err)
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("pubkey must be 32 bytes, got %d", len(raw))
	}

	copy(key[:], raw)
	return key, nil
}

// ValidPubkey reports whether s is a well-formed base58 32-byte key.
// Token mints extracted from free text are validated with this before any
// signal is persisted.
func ValidPubkey(s string) bool {
	_, err := DecodePubkey(s)
	return err == nil
}

// IsOnCurve reports whether the pubkey is a valid ed25519 curve point.
// Wallet addresses must be on-curve (program-derived addresses are not and
// cannot hold a signing key).
func IsOnCurve(s string) bool {
	key, err := DecodePubkey(s)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}
