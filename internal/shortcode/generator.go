package shortcode

import (
	"fmt"
	"sync/atomic"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 7

// Random generates fixed-length codes with symbols drawn uniformly from Alphabet.
type Random struct {
	length int
}

// NewRandom creates a Random generator. Non-positive lengths fall back to DefaultLength.
func NewRandom(length int) *Random {
	if length <= 0 {
		length = DefaultLength
	}
	return &Random{length: length}
}

func (g *Random) Generate() (string, error) {
	const op = "shortcode.Random.Generate"

	code, err := gonanoid.Generate(Alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return code, nil
}

// Sequence encodes a monotonically increasing counter.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence creates a Sequence whose first code is Encode(start).
func NewSequence(start uint64) *Sequence {
	s := new(Sequence)
	s.next.Store(start)
	return s
}

func (g *Sequence) Generate() (string, error) {
	return Encode(g.next.Add(1) - 1), nil
}

// NextAfter returns the smallest counter value greater than every code in
// codes that decodes cleanly. Codes that do not decode are ignored.
func NextAfter(codes []string) uint64 {
	var next uint64
	for _, c := range codes {
		n, err := Decode(c)
		if err != nil || n == ^uint64(0) {
			continue
		}
		if n >= next {
			next = n + 1
		}
	}
	return next
}
