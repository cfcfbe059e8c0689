// Package shortcode produces short codes over a base-62 alphabet.
//
// Generators do not guarantee uniqueness on their own: the URL store detects
// collisions and the use case retries with a fresh code.
package shortcode

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Alphabet is the ordered base-62 symbol set: digits, lower case, upper case.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = uint64(len(Alphabet))

var (
	ErrEmptyCode     = errors.New("empty code")
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrOverflow      = errors.New("value overflows uint64")
)

// Encode returns the positional base-62 representation of n. Zero maps to "0".
func Encode(n uint64) string {
	if n == 0 {
		return Alphabet[:1]
	}

	var buf [11]byte // 62^11 > 2^64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = Alphabet[n%base]
		n /= base
	}

	return string(buf[i:])
}

// Decode is the inverse of Encode.
func Decode(s string) (uint64, error) {
	const op = "shortcode.Decode"

	if s == "" {
		return 0, fmt.Errorf("%s: %w", op, ErrEmptyCode)
	}

	var n uint64
	for _, r := range s {
		d := strings.IndexRune(Alphabet, r)
		if d < 0 {
			return 0, fmt.Errorf("%s: %w %q", op, ErrInvalidSymbol, r)
		}
		if n > (math.MaxUint64-uint64(d))/base {
			return 0, fmt.Errorf("%s: %w", op, ErrOverflow)
		}
		n = n*base + uint64(d)
	}

	return n, nil
}
