package pizip

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var loadPiTable = sync.OnceValues(func() (*DigitTable, error) {
	f, err := os.Open(filepath.Join("pidigits", "pi.txt"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDigitTable(f)
})

// piTable returns the shared table over the first million digits of π.
func piTable(tb testing.TB) *DigitTable {
	tb.Helper()
	table, err := loadPiTable()
	require.NoError(tb, err)
	return table
}

func mustTable(tb testing.TB, digits string, opts ...TableOption) *DigitTable {
	tb.Helper()
	table, err := NewDigitTable([]byte(digits), opts...)
	require.NoError(tb, err)
	return table
}

func mustDecode(tb testing.TB, table *DigitTable, instrs []Instruction) []byte {
	tb.Helper()
	out, err := Decode(table, instrs)
	require.NoError(tb, err)
	return out
}
