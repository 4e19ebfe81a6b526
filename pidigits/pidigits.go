// Package pidigits embeds the first million decimal digits of π, starting
// with the leading 3.
package pidigits

import (
	_ "embed"
	"sync"

	"github.com/seiflotfy/pizip"
)

// Count is the number of embedded digits.
const Count = 1_000_000

//go:embed pi.txt
var digits string

// Digits returns a fresh copy of the embedded digits.
func Digits() []byte {
	return []byte(digits)
}

var defaultTable = sync.OnceValues(func() (*pizip.DigitTable, error) {
	return pizip.NewDigitTable([]byte(digits))
})

// Table returns a DigitTable over the embedded digits. The table is built on
// first use and shared by every caller.
func Table() (*pizip.DigitTable, error) {
	return defaultTable()
}

// NewTable builds a separate DigitTable over the embedded digits with opts applied.
func NewTable(opts ...pizip.TableOption) (*pizip.DigitTable, error) {
	return pizip.NewDigitTable([]byte(digits), opts...)
}
