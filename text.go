package pizip

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// WriteInstructions writes instrs to w in textual form, one per line.
func WriteInstructions(w io.Writer, instrs []Instruction) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	var line []byte
	for i, in := range instrs {
		var err error
		line, err = in.appendText(line[:0])
		if err != nil {
			return total, fmt.Errorf("instruction %d: %w", i, err)
		}
		line = append(line, '\n')
		n, err := bw.Write(line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// ReadInstructions parses the textual form written by WriteInstructions.
// Blank lines are ignored.
func ReadInstructions(r io.Reader) ([]Instruction, error) {
	var instrs []Instruction
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var in Instruction
		if err := in.UnmarshalText(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		instrs = append(instrs, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read instructions: %w", err)
	}
	return instrs, nil
}
