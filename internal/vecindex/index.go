// Package vecindex provides a flat, append-only L2 vector index.
//
// The index does exact nearest-neighbour search by squared Euclidean distance
// over every stored vector. Positions are assigned in insertion order and never
// change. Concurrent searches are safe; Add and Truncate need exclusive access.
package vecindex

import (
	"fmt"
	"sort"
)

// Match is a single search hit.
type Match struct {
	Position int     `json:"position"`
	Distance float32 `json:"distance"`
}

// Index is a flat collection of fixed-dimension vectors.
type Index struct {
	dim  int
	data []float32
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dim returns the vector dimension.
func (x *Index) Dim() int { return x.dim }

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.data) / x.dim
}

// Add appends a vector. The vector is copied.
func (x *Index) Add(vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), x.dim)
	}
	x.data = append(x.data, vec...)
	return nil
}

// Vector returns a copy of the vector at position i.
func (x *Index) Vector(i int) []float32 {
	out := make([]float32, x.dim)
	copy(out, x.data[i*x.dim:(i+1)*x.dim])
	return out
}

// Truncate drops every vector at position n or later.
func (x *Index) Truncate(n int) {
	if n < 0 || n >= x.Len() {
		return
	}
	x.data = x.data[:n*x.dim]
}

// Search returns up to k vectors nearest to q, closest first. Equal distances
// keep insertion order.
func (x *Index) Search(q []float32, k int) ([]Match, error) {
	if len(q) != x.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(q), x.dim)
	}
	n := x.Len()
	if n == 0 || k <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, n)
	for i := 0; i < n; i++ {
		matches[i] = Match{Position: i, Distance: SquaredL2(q, x.data[i*x.dim:(i+1)*x.dim])}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Distance < matches[b].Distance
	})

	if k > n {
		k = n
	}
	return matches[:k], nil
}

// SquaredL2 computes the squared Euclidean distance between a and b, which
// must have equal length.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
