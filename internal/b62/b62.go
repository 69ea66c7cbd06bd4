// Package b62 generates unique identifiers rendered over a 62-character
// alphabet, suitable for binary-id primary keys.
package b62

import (
	"math/big"

	"github.com/google/uuid"
)

// Alphabet is the digit set, in value order.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Length is the fixed width of an encoded identifier:
// the smallest n with 62^n >= 2^128.
const Length = 22

// New returns a fresh identifier with a random 128-bit payload.
func New() string {
	return Encode(uuid.New())
}

// Encode renders a 128-bit value as a zero-padded base62 string.
func Encode(id uuid.UUID) string {
	n := new(big.Int).SetBytes(id[:])
	base := big.NewInt(int64(len(Alphabet)))
	mod := new(big.Int)

	buf := make([]byte, Length)
	for i := Length - 1; i >= 0; i-- {
		n.DivMod(n, base, mod)
		buf[i] = Alphabet[mod.Int64()]
	}
	return string(buf)
}
