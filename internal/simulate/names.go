package simulate

import (
	"encoding/hex"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Names returns n distinct participant names of exactly length
// characters: random hex followed by "_<index>", keeping the rightmost
// length characters so the index suffix always survives.
func Names(rng *rand.Rand, n, length int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if length < len(suffix(n-1)) {
		return nil, ErrNameTooShort
	}

	buf := make([]byte, (length+1)/2)
	names := make([]string, n)
	for i := range names {
		for j := range buf {
			buf[j] = byte(rng.UintN(256))
		}
		var b strings.Builder
		b.Grow(len(buf)*2 + len(suffix(i)))
		b.WriteString(hex.EncodeToString(buf))
		b.WriteString(suffix(i))
		s := b.String()
		names[i] = s[len(s)-length:]
	}
	return names, nil
}

func suffix(i int) string {
	return "_" + strconv.Itoa(i)
}
