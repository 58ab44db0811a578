package trackinfo

import (
	"fmt"
	"math/big"
	"strings"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	idLength  = 22
	hexLength = 32
)

var base62 = big.NewInt(62)

// IDToHex converts a 22 character base62 track id into the 32 character hex
// gid the metadata service is keyed by.
func IDToHex(id string) (string, error) {
	if len(id) != idLength {
		return "", fmt.Errorf("invalid id %q: expected %d characters", id, idLength)
	}
	n := new(big.Int)
	for _, c := range id {
		digit := strings.IndexRune(base62Alphabet, c)
		if digit < 0 {
			return "", fmt.Errorf("invalid id %q: unexpected character %q", id, c)
		}
		n.Mul(n, base62)
		n.Add(n, big.NewInt(int64(digit)))
	}
	hex := n.Text(16)
	if len(hex) > hexLength {
		return "", fmt.Errorf("invalid id %q: value overflows 128 bits", id)
	}
	return strings.Repeat("0", hexLength-len(hex)) + hex, nil
}

// HexToID is the inverse of IDToHex.
func HexToID(hex string) (string, error) {
	if len(hex) != hexLength {
		return "", fmt.Errorf("invalid gid %q: expected %d characters", hex, hexLength)
	}
	n, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return "", fmt.Errorf("invalid gid %q", hex)
	}

	out := make([]byte, idLength)
	mod := new(big.Int)
	for i := idLength - 1; i >= 0; i-- {
		n.DivMod(n, base62, mod)
		out[i] = base62Alphabet[mod.Int64()]
	}
	return string(out), nil
}
