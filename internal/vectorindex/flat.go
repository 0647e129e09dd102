package vectorindex

import (
	"fmt"
	"math"
	"sort"
)

// Flat is a brute-force L2 index over float32 vectors. It backs both the
// persistent per-project text index and the ephemeral figure index built
// per retrieval call.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index. The dimension is fixed by the first
// vector added.
func NewFlat() *Flat {
	return &Flat{}
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	return len(f.vectors)
}

// Dim returns the vector dimension, or 0 while empty.
func (f *Flat) Dim() int {
	return f.dim
}

// Append adds vectors in order. All vectors must share one dimension.
func (f *Flat) Append(vectors ...[]float32) error {
	for _, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("empty vector")
		}
		if f.dim == 0 {
			f.dim = len(v)
		}
		if len(v) != f.dim {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), f.dim)
		}
		f.vectors = append(f.vectors, v)
	}
	return nil
}

// Match is one nearest-neighbor hit: the vector's insertion position and
// its Euclidean distance to the query.
type Match struct {
	Position int
	Distance float32
}

// Search returns the k nearest vectors by Euclidean distance, closest
// first. Fewer than k stored vectors means all of them are returned.
func (f *Flat) Search(query []float32, k int) []Match {
	if k <= 0 || len(f.vectors) == 0 {
		return nil
	}

	matches := make([]Match, len(f.vectors))
	for i, v := range f.vectors {
		matches[i] = Match{Position: i, Distance: l2Distance(v, query)}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Position < matches[j].Position
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}

func l2Distance(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	// Extra components of the longer vector count fully; a dimension
	// mismatch should rank far away rather than silently rank close.
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return float32(math.Sqrt(sum))
}
