// Package pizip encodes bytes as references into a fixed table of the decimal
// digits of π, falling back to literal bytes where no reference exists.
//
// Each input byte is viewed as its two lowercase hex digits. Bytes whose hex form
// uses only '0'-'9' can be found verbatim in a decimal table; runs of such bytes
// are replaced by a TableRef naming where the run starts in the table. Everything
// else becomes a Literal. The output is not smaller than the input in general.
package pizip

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"runtime"
)

const (
	defaultMaxLookahead = 8  // bytes hex-expanded per cursor position
	maxLookaheadLimit   = 64 // upper clamp for WithMaxLookahead
)

// Config holds configuration for the encoder.
type Config struct {
	MaxLookahead int // Bytes considered per cursor position (0 = default 8, max 64)
	Workers      int // Parallelism for EncodeAll (0 = runtime.NumCPU())
}

// Option is a functional option for configuring the encoder.
type Option func(*Config)

// WithMaxLookahead bounds how many bytes are hex-expanded and searched at
// each cursor position. Values outside [1, 64] are clamped.
func WithMaxLookahead(n int) Option {
	return func(c *Config) {
		c.MaxLookahead = n
	}
}

// WithWorkers sets the number of goroutines EncodeAll uses.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func resolveMaxLookahead(cfg Config) int {
	switch {
	case cfg.MaxLookahead == 0:
		return defaultMaxLookahead
	case cfg.MaxLookahead < 1:
		return 1
	case cfg.MaxLookahead > maxLookaheadLimit:
		return maxLookaheadLimit
	default:
		return cfg.MaxLookahead
	}
}

func resolveWorkers(cfg Config) int {
	if cfg.Workers <= 0 {
		return runtime.NumCPU()
	}
	return cfg.Workers
}

// Encoder turns bytes into instruction sequences against a DigitTable.
// An Encoder holds no mutable state and may be used from multiple goroutines.
type Encoder struct {
	table  *DigitTable
	config Config
}

// NewEncoder creates an encoder over table with the given options.
func NewEncoder(table *DigitTable, opts ...Option) *Encoder {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Encoder{table: table, config: cfg}
}

// Table returns the digit table the encoder searches.
func (e *Encoder) Table() *DigitTable {
	return e.table
}

// Encode is shorthand for NewEncoder(table, opts...).Encode(data).
func Encode(table *DigitTable, data []byte, opts ...Option) []Instruction {
	return NewEncoder(table, opts...).Encode(data)
}

// Encode greedily covers data with the longest verified table references it
// can find, left to right, emitting a Literal for any byte with no reference.
//
// At each position the longest candidate within the lookahead window is tried
// first. A longer match always wins over a shorter one, and among occurrences
// of the same candidate the lowest table index is used. Encode never fails.
func (e *Encoder) Encode(data []byte) []Instruction {
	lookahead := resolveMaxLookahead(e.config)
	out := make([]Instruction, 0, len(data)/2+1)
	hexBuf := make([]byte, 2*lookahead)
	scratch := make([]byte, lookahead)

	pos := 0
	for pos < len(data) {
		window := data[pos:min(pos+lookahead, len(data))]

		// A byte above 9 in either nibble puts 'a'-'f' into the hex string, so no
		// candidate extending past it can occur in the table.
		feasible := decimalPrefixLen(window)
		hex.Encode(hexBuf, window[:feasible])

		matched := false
		for n := feasible; n > 0; n-- {
			index, ok := e.table.Find(hexBuf[:2*n], 0)
			if !ok {
				continue
			}
			if !e.verify(index, window[:n], scratch) {
				continue
			}
			out = append(out, TableRef(index, n))
			pos += n
			matched = true
			break
		}
		if !matched {
			out = append(out, Literal(data[pos]))
			pos++
		}
	}
	return out
}

// verify reads the digits at index back out of the table and checks that they
// decode to want.
func (e *Encoder) verify(index int, want []byte, scratch []byte) bool {
	span, err := e.table.Span(index, 2*len(want))
	if err != nil {
		return false
	}
	got := scratch[:len(want)]
	if _, err := hex.Decode(got, span); err != nil {
		return false
	}
	return bytes.Equal(got, want)
}

// decimalPrefixLen returns the number of leading bytes whose hex digits are all
// in '0'-'9'.
func decimalPrefixLen(b []byte) int {
	for i, c := range b {
		if c>>4 > 9 || c&0x0f > 9 {
			return i
		}
	}
	return len(b)
}

// Decode replays instrs against table and returns the original bytes.
func Decode(table *DigitTable, instrs []Instruction) ([]byte, error) {
	return AppendDecode(nil, table, instrs)
}

// AppendDecode appends the bytes described by instrs to dst. On error dst is
// returned unchanged.
func AppendDecode(dst []byte, table *DigitTable, instrs []Instruction) ([]byte, error) {
	out := dst
	for i, in := range instrs {
		switch in.Kind {
		case KindTableRef:
			if in.ByteCount < 1 || in.Index < 0 {
				return dst, fmt.Errorf("%w at instruction %d: %s", ErrMalformedInstruction, i, in)
			}
			span, err := table.Span(in.Index, in.DigitLen())
			if err != nil {
				return dst, fmt.Errorf("instruction %d: %w", i, err)
			}
			n := len(out)
			out = append(out, make([]byte, in.ByteCount)...)
			if _, err := hex.Decode(out[n:], span); err != nil {
				return dst, fmt.Errorf("%w at instruction %d: %v", ErrMalformedInstruction, i, err)
			}
		case KindLiteral:
			b, err := in.Byte()
			if err != nil {
				return dst, fmt.Errorf("instruction %d: %w", i, err)
			}
			out = append(out, b)
		default:
			return dst, fmt.Errorf("%w at instruction %d: unknown kind %d", ErrMalformedInstruction, i, in.Kind)
		}
	}
	return out, nil
}
