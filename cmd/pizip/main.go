// Command pizip encodes files as references into the digits of π and back.
//
// Usage:
//
//	pizip encode [-in FILE] [-out FILE] [-format text|binary] [-lookahead N] [-digits FILE] [-v]
//	pizip decode [-in FILE] [-out FILE] [-digits FILE] [-v]
//	pizip repl [-digits FILE]
//
// FILE "-" (the default) means standard input or output.
//
// The text format lists one instruction per line,
// either "Pi[<index>] (<n> bytes)" or "Raw[<hh>]".
// The binary format is a pizip archive,
// which also records the digit table and a checksum of the input;
// decode tells the two apart by the archive magic.
//
// The digit table is the embedded first million digits of π,
// unless -digits or the PIZIP_DIGITS environment variable
// names a file of digit text to use instead.
// Encoding and decoding must use the same table.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bobg/subcmd/v2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		ctx = context.Background()

		c maincmd
	)

	return subcmd.Run(ctx, c, os.Args[1:])
}

type maincmd struct {
}

func (maincmd) Subcmds() subcmd.Map {
	return subcmd.Commands(
		"encode", doEncode, "encode a file against the digit table", subcmd.Params(
			"-in", subcmd.String, "-", "input file",
			"-out", subcmd.String, "-", "output file",
			"-format", subcmd.String, formatText, "output format: text or binary",
			"-lookahead", subcmd.Int, 0, "bytes searched per position (0 = default)",
			"-digits", subcmd.String, "", "digit table file (default: $PIZIP_DIGITS or embedded π)",
			"-v", subcmd.Bool, false, "report progress on stderr",
		),
		"decode", doDecode, "decode text instructions or a binary archive", subcmd.Params(
			"-in", subcmd.String, "-", "input file",
			"-out", subcmd.String, "-", "output file",
			"-digits", subcmd.String, "", "digit table file (default: $PIZIP_DIGITS or embedded π)",
			"-v", subcmd.Bool, false, "report progress on stderr",
		),
		"repl", doRepl, "encode lines typed on standard input", subcmd.Params(
			"-digits", subcmd.String, "", "digit table file (default: $PIZIP_DIGITS or embedded π)",
		),
	)
}
