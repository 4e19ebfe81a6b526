// Package lpm provides prefix-bucketed substring search over a decimal digit sequence.
package lpm

import (
	"bytes"
	"sort"
)

// pow10 holds the bucket count for each supported key width.
var pow10 = [maxKeyWidth + 1]int{
	1,       // 0 digits
	10,      // 1 digit
	100,     // 2 digits
	1000,    // 3 digits
	10000,   // 4 digits
	100000,  // 5 digits
	1000000, // 6 digits
}

const maxKeyWidth = 6

// Index is a read-only positional index over a digit sequence.
//
// Every position that has at least keyWidth digits after it is bucketed by the
// decimal value of those digits. Buckets are stored flat: positions[offsets[k]:offsets[k+1]]
// lists, in ascending order, every position whose key is k. A search for a needle
// at least keyWidth long only visits the bucket of its leading digits, so the first
// verified candidate is always the lowest matching position.
//
// An Index never mutates after New and may be shared between goroutines.
type Index struct {
	digits    []byte
	keyWidth  int
	offsets   []uint32 // pow10[keyWidth]+1 bucket boundaries
	positions []uint32 // bucketed positions, ascending within each bucket
}

// New builds an index over digits. Every byte of digits must be '0'-'9';
// the caller is responsible for validating that. digits is retained, not copied.
func New(digits []byte) *Index {
	idx := &Index{
		digits:   digits,
		keyWidth: KeyWidthFor(len(digits)),
	}
	if idx.keyWidth == 0 {
		return idx
	}

	nKeys := len(digits) - idx.keyWidth + 1
	idx.offsets = make([]uint32, pow10[idx.keyWidth]+1)
	idx.positions = make([]uint32, nKeys)

	// Counting sort: histogram, prefix sums, then scatter in position order.
	for pos := 0; pos < nKeys; pos++ {
		idx.offsets[idx.key(digits[pos:])+1]++
	}
	for k := 1; k < len(idx.offsets); k++ {
		idx.offsets[k] += idx.offsets[k-1]
	}
	next := make([]uint32, pow10[idx.keyWidth])
	copy(next, idx.offsets[:len(next)])
	for pos := 0; pos < nKeys; pos++ {
		k := idx.key(digits[pos:])
		idx.positions[next[k]] = uint32(pos)
		next[k]++
	}
	return idx
}

// KeyWidthFor returns the bucket key width used for a sequence of n digits:
// roughly log10(n), clamped to [1, 6]. Empty sequences get width 0 (no buckets).
func KeyWidthFor(n int) int {
	if n <= 0 {
		return 0
	}
	w := 1
	for w < maxKeyWidth && pow10[w+1] <= n {
		w++
	}
	return w
}

// KeyWidth reports the number of leading digits used as the bucket key.
func (idx *Index) KeyWidth() int {
	return idx.keyWidth
}

// Len returns the number of digits covered by the index.
func (idx *Index) Len() int {
	return len(idx.digits)
}

// Find returns the lowest position >= start at which needle occurs.
//
// needle must consist of decimal digits only; a needle with any other byte
// never matches. An empty needle, or a start outside [0, Len()], is a miss.
func (idx *Index) Find(needle []byte, start int) (int, bool) {
	if len(needle) == 0 || start < 0 || start > len(idx.digits) {
		return 0, false
	}
	if len(needle) > len(idx.digits)-start {
		return 0, false
	}
	if !isDigits(needle) {
		return 0, false
	}

	// Short needles cannot use a bucket key; scan linearly.
	if len(needle) < idx.keyWidth {
		i := bytes.Index(idx.digits[start:], needle)
		if i < 0 {
			return 0, false
		}
		return start + i, true
	}

	k := idx.key(needle)
	bucket := idx.positions[idx.offsets[k]:idx.offsets[k+1]]
	first := sort.Search(len(bucket), func(i int) bool {
		return int(bucket[i]) >= start
	})

	// Verify the digits after the key for each candidate in ascending order.
	rest := needle[idx.keyWidth:]
	for _, p := range bucket[first:] {
		pos := int(p)
		end := pos + len(needle)
		if end > len(idx.digits) {
			break
		}
		if bytes.Equal(idx.digits[pos+idx.keyWidth:end], rest) {
			return pos, true
		}
	}
	return 0, false
}

// Count returns how many times needle occurs in the sequence, overlaps included.
func (idx *Index) Count(needle []byte) int {
	n := 0
	for start := 0; ; {
		pos, ok := idx.Find(needle, start)
		if !ok {
			return n
		}
		n++
		start = pos + 1
	}
}

// key returns the decimal value of the first keyWidth digits of b.
func (idx *Index) key(b []byte) int {
	k := 0
	for _, c := range b[:idx.keyWidth] {
		k = k*10 + int(c-'0')
	}
	return k
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
