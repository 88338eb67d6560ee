package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, offline embedder. Each token is hashed to
// a signed bucket and the bag of tokens is normalised to a unit vector, so
// texts sharing words land closer together. It has no semantic knowledge and
// exists for tests, demos and air-gapped installs.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder producing dims-length vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	vec := make(Vector, e.dims)
	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := sum % uint64(e.dims)
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	return normalize(vec), nil
}

func (e *HashEmbedder) Dims() int { return e.dims }

// Tokenize lowercases text and splits it into word tokens. Han characters
// become one token each since Chinese text carries no spaces.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// normalize converts a vector to unit length. The zero vector is returned as is.
func normalize(vec Vector) Vector {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
