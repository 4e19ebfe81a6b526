package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bobg/errors"

	"github.com/seiflotfy/pizip"
)

const (
	replPrompt = "Enter text to compress (Q to quit): "
	replQuit   = "Q"
)

func doRepl(_ context.Context, digits string, _ []string) error {
	table, err := loadTable(digits)
	if err != nil {
		return err
	}
	return repl(os.Stdin, os.Stdout, table)
}

// repl reads lines from r until EOF or a line reading "Q". Each line is
// encoded, the instructions printed, then decoded and printed again.
func repl(r io.Reader, w io.Writer, table *pizip.DigitTable) error {
	enc := pizip.NewEncoder(table)
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, replPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return errors.Wrap(scanner.Err(), "reading input")
		}
		line := strings.TrimSpace(scanner.Text())
		if line == replQuit {
			return nil
		}

		instrs := enc.Encode([]byte(line))
		words := make([]string, len(instrs))
		for i, in := range instrs {
			words[i] = in.String()
		}
		fmt.Fprintf(w, "[%s]\n", strings.Join(words, ", "))

		restored, err := pizip.Decode(table, instrs)
		if err != nil {
			return errors.Wrap(err, "decoding")
		}
		fmt.Fprintln(w, string(restored))
	}
}
