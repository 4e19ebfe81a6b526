package pizip

import (
	"bytes"
	"encoding/hex"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Helper Functions
// ============================================================================

// randomBytes returns n bytes, roughly decimalShare of them with two decimal
// nibbles so that table references actually occur.
func randomBytes(rng *rand.Rand, n int, decimalShare float64) []byte {
	b := make([]byte, n)
	for i := range b {
		if rng.Float64() < decimalShare {
			b[i] = byte(rng.IntN(10)<<4 | rng.IntN(10))
		} else {
			b[i] = byte(rng.IntN(256))
		}
	}
	return b
}

// requireRoundTrip encodes data, checks every emitted instruction against the
// table, and decodes it back.
func requireRoundTrip(t *testing.T, enc *Encoder, data []byte) []Instruction {
	t.Helper()
	instrs := enc.Encode(data)
	requireCovers(t, enc.Table(), data, instrs)
	got := mustDecode(t, enc.Table(), instrs)
	if len(data) == 0 {
		require.Empty(t, got)
	} else {
		require.Equal(t, data, got)
	}
	return instrs
}

// requireCovers checks that instrs consume data left to right, that each
// TableRef span is all digits and hex-decodes to the bytes it replaces, and
// that each Literal carries its byte.
func requireCovers(t *testing.T, table *DigitTable, data []byte, instrs []Instruction) {
	t.Helper()
	pos := 0
	for i, in := range instrs {
		switch in.Kind {
		case KindTableRef:
			require.GreaterOrEqual(t, in.ByteCount, 1, "instruction %d", i)
			span, err := table.Span(in.Index, in.DigitLen())
			require.NoError(t, err, "instruction %d", i)
			for _, c := range span {
				require.True(t, c >= '0' && c <= '9', "instruction %d: non-digit %q", i, c)
			}
			decoded, err := hex.DecodeString(string(span))
			require.NoError(t, err)
			require.Equal(t, data[pos:pos+in.ByteCount], decoded, "instruction %d", i)
			pos += in.ByteCount
		case KindLiteral:
			b, err := in.Byte()
			require.NoError(t, err)
			require.Equal(t, data[pos], b, "instruction %d", i)
			pos++
		default:
			t.Fatalf("instruction %d: unexpected kind %v", i, in.Kind)
		}
	}
	require.Equal(t, len(data), pos)
}

// ============================================================================
// Encoding against the π table
// ============================================================================

func TestEncodeKnownInputs(t *testing.T) {
	table := piTable(t)

	tests := []struct {
		name  string
		input []byte
		want  []Instruction
	}{
		{
			name:  "Empty",
			input: nil,
			want:  []Instruction{},
		},
		{
			name:  "SingleDecimalByte",
			input: []byte("H"), // "48" first occurs at 87
			want:  []Instruction{TableRef(87, 1)},
		},
		{
			name:  "HexLetterByte",
			input: []byte{0x4a},
			want:  []Instruction{Literal(0x4a)},
		},
		{
			name:  "TwoBytesInOneRef",
			input: []byte("Hi"), // "4869" occurs at 22506
			want:  []Instruction{TableRef(22506, 2)},
		},
		{
			name:  "LeadingDigits",
			input: []byte{0x31, 0x41, 0x59, 0x26},
			want:  []Instruction{TableRef(0, 4)},
		},
		{
			name:  "Sentence",
			input: []byte("Hello, World!"),
			want: []Instruction{
				TableRef(2267, 2), // "He"
				Literal('l'),
				Literal('l'),
				Literal('o'),
				Literal(','),
				TableRef(9782, 2), // " W"
				Literal('o'),
				TableRef(139, 1), // "r"
				Literal('l'),
				TableRef(7603, 2), // "d!"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(table, tt.input)
			assert.Equal(t, tt.want, got)

			decoded := mustDecode(t, table, got)
			if len(tt.input) == 0 {
				assert.Empty(t, decoded)
			} else {
				assert.Equal(t, tt.input, decoded)
			}
		})
	}
}

func TestEncodeLiteralForHexLetters(t *testing.T) {
	table := piTable(t)

	// Every byte with a nibble above 9 must become exactly one Literal.
	for b := 0; b < 256; b++ {
		if b>>4 <= 9 && b&0x0f <= 9 {
			continue
		}
		got := Encode(table, []byte{byte(b)})
		require.Len(t, got, 1)
		assert.Equal(t, KindLiteral, got[0].Kind)
		assert.Equal(t, hex.EncodeToString([]byte{byte(b)}), string(got[0].Hex[:]))
	}
}

func TestEncodeEveryDecimalByteFindsReference(t *testing.T) {
	table := piTable(t)

	// All 100 two-digit strings occur early in π.
	for hi := 0; hi <= 9; hi++ {
		for lo := 0; lo <= 9; lo++ {
			b := byte(hi<<4 | lo)
			got := Encode(table, []byte{b})
			require.Len(t, got, 1)
			assert.Equal(t, KindTableRef, got[0].Kind, "byte %#02x", b)
			assert.Equal(t, 1, got[0].ByteCount)
		}
	}
}

func TestRoundTripRandom(t *testing.T) {
	table := piTable(t)
	rng := rand.New(rand.NewPCG(1, 2))

	for _, share := range []float64{0, 0.5, 0.9, 1} {
		for _, lookahead := range []int{1, 3, 8} {
			enc := NewEncoder(table, WithMaxLookahead(lookahead))
			for i := 0; i < 20; i++ {
				requireRoundTrip(t, enc, randomBytes(rng, rng.IntN(300), share))
			}
		}
	}
}

func TestRoundTripText(t *testing.T) {
	enc := NewEncoder(piTable(t))
	inputs := []string{
		"",
		"a",
		"The quick brown fox jumps over the lazy dog",
		"2024-01-15 10:30:45 INFO request completed",
		"hello世界",
		"null\x00byte",
		string(bytes.Repeat([]byte{0x99}, 40)),
	}
	for _, input := range inputs {
		requireRoundTrip(t, enc, []byte(input))
	}
}

// ============================================================================
// Greedy policy
// ============================================================================

func TestEncodeGreedyMaximality(t *testing.T) {
	table := piTable(t)
	digits := table.Digits()
	rng := rand.New(rand.NewPCG(3, 4))
	const lookahead = 4

	enc := NewEncoder(table, WithMaxLookahead(lookahead))
	for i := 0; i < 50; i++ {
		data := randomBytes(rng, 64, 0.95)
		instrs := enc.Encode(data)
		requireCovers(t, table, data, instrs)

		pos := 0
		for _, in := range instrs {
			chosen := 0
			if in.Kind == KindTableRef {
				chosen = in.ByteCount
			}
			// No longer candidate inside the window may exist in the table.
			for n := chosen + 1; n <= lookahead && pos+n <= len(data); n++ {
				needle := []byte(hex.EncodeToString(data[pos : pos+n]))
				require.Equal(t, -1, bytes.Index(digits, needle),
					"position %d: %d-byte match %s skipped in favour of %d", pos, n, needle, chosen)
			}
			if in.Kind == KindTableRef {
				needle := []byte(hex.EncodeToString(data[pos : pos+chosen]))
				require.Equal(t, bytes.Index(digits, needle), in.Index, "position %d: not the first occurrence", pos)
				pos += chosen
			} else {
				pos++
			}
		}
	}
}

func TestEncodeLengthDominatesIndex(t *testing.T) {
	// "48" sits at 0, "4869" only at 6: the two-byte reference must win.
	table := mustTable(t, "4811114869")
	got := Encode(table, []byte("Hi"))
	assert.Equal(t, []Instruction{TableRef(6, 2)}, got)
}

func TestEncodeFirstOccurrence(t *testing.T) {
	table := mustTable(t, "1169694869")
	got := Encode(table, []byte("i"))
	assert.Equal(t, []Instruction{TableRef(2, 1)}, got)
}

func TestEncodeShrinksToShorterMatch(t *testing.T) {
	// "4869" is absent, so "H" and "i" are referenced separately.
	table := mustTable(t, "0048006900")
	got := Encode(table, []byte("Hi"))
	assert.Equal(t, []Instruction{TableRef(2, 1), TableRef(6, 1)}, got)
}

func TestEncodeDecimalByteWithoutMatch(t *testing.T) {
	table := mustTable(t, "0000")
	got := Encode(table, []byte("H"))
	assert.Equal(t, []Instruction{Literal('H')}, got)
	assert.Equal(t, "48", string(got[0].Hex[:]))
}

func TestEncodeLookaheadBoundsReference(t *testing.T) {
	table := mustTable(t, "3141592653")
	data := []byte{0x31, 0x41, 0x59, 0x26, 0x53}

	assert.Equal(t, []Instruction{TableRef(0, 5)}, Encode(table, data))
	assert.Equal(t, []Instruction{TableRef(0, 2), TableRef(4, 2), TableRef(8, 1)},
		Encode(table, data, WithMaxLookahead(2)))
}

func TestEncodeStopsCandidateAtHexLetter(t *testing.T) {
	// "48" then 0x4a: the candidate never extends across the letter byte.
	table := mustTable(t, "48")
	got := Encode(table, []byte{0x48, 0x4a, 0x48})
	assert.Equal(t, []Instruction{TableRef(0, 1), Literal(0x4a), TableRef(0, 1)}, got)
}

func TestEncodeEmptyTable(t *testing.T) {
	table := mustTable(t, "")
	data := []byte("Hi!")
	got := Encode(table, data)
	assert.Equal(t, []Instruction{Literal('H'), Literal('i'), Literal('!')}, got)
	assert.Equal(t, data, mustDecode(t, table, got))
}

func TestVerifyRejectsWrongSpan(t *testing.T) {
	table := mustTable(t, "48694800")
	enc := NewEncoder(table)
	scratch := make([]byte, 8)

	assert.True(t, enc.verify(0, []byte("Hi"), scratch))
	assert.True(t, enc.verify(4, []byte("H"), scratch))
	assert.False(t, enc.verify(1, []byte("H"), scratch))
	assert.False(t, enc.verify(6, []byte("Hi"), scratch))
	assert.False(t, enc.verify(-1, []byte("H"), scratch))
}

func TestResolveMaxLookahead(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, defaultMaxLookahead},
		{-5, 1},
		{1, 1},
		{16, 16},
		{1000, maxLookaheadLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveMaxLookahead(Config{MaxLookahead: tt.in}), "lookahead %d", tt.in)
	}
}

func TestDecimalPrefixLen(t *testing.T) {
	assert.Equal(t, 0, decimalPrefixLen(nil))
	assert.Equal(t, 3, decimalPrefixLen([]byte{0x00, 0x99, 0x45}))
	assert.Equal(t, 1, decimalPrefixLen([]byte{0x48, 0x4a, 0x48}))
	assert.Equal(t, 0, decimalPrefixLen([]byte{0xa0}))
	assert.Equal(t, 0, decimalPrefixLen([]byte{0x0a}))
}

// ============================================================================
// Decoding
// ============================================================================

func TestDecodeBounds(t *testing.T) {
	table := mustTable(t, "0123456789")

	got, err := Decode(table, []Instruction{TableRef(8, 1)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89}, got)

	tests := []struct {
		name  string
		instr Instruction
	}{
		{name: "PastEnd", instr: TableRef(9, 1)},
		{name: "StartsAtEnd", instr: TableRef(10, 1)},
		{name: "TooLong", instr: TableRef(0, 6)},
		{name: "HugeCount", instr: TableRef(0, int(^uint(0)>>2))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(table, []Instruction{Literal('x'), tt.instr})
			require.ErrorIs(t, err, ErrOutOfRange)
			assert.Contains(t, err.Error(), "instruction 1")
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	table := mustTable(t, "0123456789")

	tests := []struct {
		name  string
		instr Instruction
	}{
		{name: "ZeroCount", instr: TableRef(0, 0)},
		{name: "NegativeCount", instr: TableRef(0, -1)},
		{name: "NegativeIndex", instr: TableRef(-1, 1)},
		{name: "BadLiteral", instr: Instruction{Kind: KindLiteral, Hex: [2]byte{'g', '0'}}},
		{name: "UnknownKind", instr: Instruction{Kind: 9}},
		{name: "ZeroValue", instr: Instruction{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(table, []Instruction{tt.instr})
			assert.ErrorIs(t, err, ErrMalformedInstruction)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(mustTable(t, "1"), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendDecode(t *testing.T) {
	table := mustTable(t, "4869")
	dst := []byte("say: ")

	got, err := AppendDecode(dst, table, []Instruction{TableRef(0, 2), Literal('!')})
	require.NoError(t, err)
	assert.Equal(t, "say: Hi!", string(got))

	got, err = AppendDecode(dst, table, []Instruction{TableRef(0, 2), TableRef(3, 1)})
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, "say: ", string(got))
}
