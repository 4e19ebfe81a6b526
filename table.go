package pizip

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/seiflotfy/pizip/lpm"
)

const defaultSearchCacheSize = 4096

var (
	// ErrInvalidDigit indicates digit table input contained a byte outside '0'-'9'.
	ErrInvalidDigit = errors.New("invalid digit")
	// ErrOutOfRange indicates a span falls outside the digit table.
	ErrOutOfRange = errors.New("span out of range")
)

type tableConfig struct {
	searchCacheSize int
}

// TableOption configures a DigitTable.
type TableOption func(*tableConfig)

// WithSearchCache sets how many search results are memoized.
// A size of 0 disables the cache.
func WithSearchCache(size int) TableOption {
	return func(c *tableConfig) {
		if size < 0 {
			size = 0
		}
		c.searchCacheSize = size
	}
}

// DigitTable is an immutable sequence of decimal digits used as the encoding
// dictionary. It is safe for concurrent use.
type DigitTable struct {
	digits      []byte
	index       *lpm.Index
	fingerprint uint64
	cache       *lru.Cache[string, int] // needle -> lowest index, -1 for a miss
}

// NewDigitTable validates digits and builds a table over a private copy of them.
func NewDigitTable(digits []byte, opts ...TableOption) (*DigitTable, error) {
	for i, c := range digits {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidDigit, c, i)
		}
	}
	return newDigitTable(append([]byte(nil), digits...), opts...)
}

// LoadDigitTable reads digit text from r. ASCII whitespace and a single decimal
// point are dropped, so both "3.14159..." and "314159..." load the same table.
func LoadDigitTable(r io.Reader, opts ...TableOption) (*DigitTable, error) {
	br := bufio.NewReader(r)
	digits := make([]byte, 0, 1<<20)
	seenPoint := false
	offset := 0
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read digit table: %w", err)
		}
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		case c == '.' && !seenPoint:
			seenPoint = true
		default:
			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidDigit, c, offset)
		}
		offset++
	}
	return newDigitTable(digits, opts...)
}

func newDigitTable(digits []byte, opts ...TableOption) (*DigitTable, error) {
	cfg := tableConfig{searchCacheSize: defaultSearchCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &DigitTable{
		digits:      digits,
		index:       lpm.New(digits),
		fingerprint: xxhash.Sum64(digits),
	}
	if cfg.searchCacheSize > 0 {
		cache, err := lru.New[string, int](cfg.searchCacheSize)
		if err != nil {
			return nil, fmt.Errorf("search cache: %w", err)
		}
		t.cache = cache
	}
	return t, nil
}

// Len returns the number of digits in the table.
func (t *DigitTable) Len() int {
	return len(t.digits)
}

// Digits returns the table contents. The returned slice must not be modified.
func (t *DigitTable) Digits() []byte {
	return t.digits
}

// Fingerprint returns the xxhash64 of the table digits.
func (t *DigitTable) Fingerprint() uint64 {
	return t.fingerprint
}

// Find returns the lowest index >= start at which hex occurs in the table.
// Any byte outside '0'-'9' makes hex unmatchable and is rejected without a search.
func (t *DigitTable) Find(hex []byte, start int) (int, bool) {
	for _, c := range hex {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	if t.cache == nil || start != 0 {
		return t.index.Find(hex, start)
	}

	if pos, ok := t.cache.Get(string(hex)); ok {
		return pos, pos >= 0
	}
	pos, ok := t.index.Find(hex, 0)
	if !ok {
		pos = -1
	}
	t.cache.Add(string(hex), pos)
	return pos, ok
}

// Span returns the n digits starting at index.
func (t *DigitTable) Span(index, n int) ([]byte, error) {
	if index < 0 || n < 0 || index > len(t.digits)-n {
		return nil, fmt.Errorf("%w: [%d, %d+%d) exceeds table length %d", ErrOutOfRange, index, index, n, len(t.digits))
	}
	return t.digits[index : index+n], nil
}
