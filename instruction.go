package pizip

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedInstruction indicates an instruction that cannot be decoded or parsed.
var ErrMalformedInstruction = errors.New("malformed instruction")

// Kind discriminates the two instruction variants.
type Kind uint8

const (
	// KindTableRef reads ByteCount bytes' worth of digits from the table at Index.
	KindTableRef Kind = iota + 1
	// KindLiteral carries one byte as two lowercase hex digits.
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindTableRef:
		return "TableRef"
	case KindLiteral:
		return "Literal"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

const hexDigits = "0123456789abcdef"

// Instruction is one step of an encoded sequence.
type Instruction struct {
	Kind      Kind
	Index     int     // TableRef: first digit in the table
	ByteCount int     // TableRef: number of original bytes, spanning 2*ByteCount digits
	Hex       [2]byte // Literal: hex digits of the original byte
}

// TableRef returns an instruction referring to byteCount bytes at index.
func TableRef(index, byteCount int) Instruction {
	return Instruction{Kind: KindTableRef, Index: index, ByteCount: byteCount}
}

// Literal returns an instruction carrying b verbatim.
func Literal(b byte) Instruction {
	return Instruction{Kind: KindLiteral, Hex: [2]byte{hexDigits[b>>4], hexDigits[b&0x0f]}}
}

// Byte returns the value of a Literal instruction.
func (in Instruction) Byte() (byte, error) {
	if in.Kind != KindLiteral {
		return 0, fmt.Errorf("%w: %s has no literal byte", ErrMalformedInstruction, in.Kind)
	}
	hi, ok1 := fromHexChar(in.Hex[0])
	lo, ok2 := fromHexChar(in.Hex[1])
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("%w: literal %q is not a hex pair", ErrMalformedInstruction, in.Hex[:])
	}
	return hi<<4 | lo, nil
}

// DigitLen returns the number of table digits a TableRef spans, 0 for other kinds.
func (in Instruction) DigitLen() int {
	if in.Kind != KindTableRef {
		return 0
	}
	return 2 * in.ByteCount
}

// String renders the instruction in its textual form,
// "Pi[<index>] (<n> bytes)" or "Raw[<hh>]".
func (in Instruction) String() string {
	b, err := in.MarshalText()
	if err != nil {
		return fmt.Sprintf("Invalid[%s]", in.Kind)
	}
	return string(b)
}

// MarshalText implements encoding.TextMarshaler.
func (in Instruction) MarshalText() ([]byte, error) {
	return in.appendText(nil)
}

func (in Instruction) appendText(dst []byte) ([]byte, error) {
	switch in.Kind {
	case KindTableRef:
		dst = append(dst, "Pi["...)
		dst = strconv.AppendInt(dst, int64(in.Index), 10)
		dst = append(dst, "] ("...)
		dst = strconv.AppendInt(dst, int64(in.ByteCount), 10)
		dst = append(dst, " bytes)"...)
		return dst, nil
	case KindLiteral:
		dst = append(dst, "Raw["...)
		dst = append(dst, in.Hex[:]...)
		dst = append(dst, ']')
		return dst, nil
	default:
		return dst, fmt.Errorf("%w: unknown kind %d", ErrMalformedInstruction, in.Kind)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (in *Instruction) UnmarshalText(text []byte) error {
	text = bytes.TrimSpace(text)
	if rest, ok := bytes.CutPrefix(text, []byte("Raw[")); ok {
		if len(rest) != 3 || rest[2] != ']' {
			return fmt.Errorf("%w: %q", ErrMalformedInstruction, text)
		}
		b, err := Instruction{Kind: KindLiteral, Hex: [2]byte{rest[0], rest[1]}}.Byte()
		if err != nil {
			return err
		}
		*in = Literal(b)
		return nil
	}

	rest, ok := bytes.CutPrefix(text, []byte("Pi["))
	if !ok {
		return fmt.Errorf("%w: %q", ErrMalformedInstruction, text)
	}
	indexText, rest, ok := bytes.Cut(rest, []byte("] ("))
	if !ok {
		return fmt.Errorf("%w: %q", ErrMalformedInstruction, text)
	}
	countText, ok := bytes.CutSuffix(rest, []byte(" bytes)"))
	if !ok {
		return fmt.Errorf("%w: %q", ErrMalformedInstruction, text)
	}
	index, err := strconv.Atoi(string(indexText))
	if err != nil || index < 0 {
		return fmt.Errorf("%w: bad index in %q", ErrMalformedInstruction, text)
	}
	count, err := strconv.Atoi(string(countText))
	if err != nil || count < 1 {
		return fmt.Errorf("%w: bad byte count in %q", ErrMalformedInstruction, text)
	}
	*in = TableRef(index, count)
	return nil
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
