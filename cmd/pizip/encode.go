package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bobg/errors"

	"github.com/seiflotfy/pizip"
)

const (
	formatText   = "text"
	formatBinary = "binary"
)

func doEncode(_ context.Context, in, out, format string, lookahead int, digits string, verbose bool, _ []string) error {
	if format != formatText && format != formatBinary {
		return fmt.Errorf("unknown format %q (want %s or %s)", format, formatText, formatBinary)
	}

	progress := newProgress(verbose)

	table, err := loadTable(digits)
	if err != nil {
		return err
	}
	progress("digit table ready: %d digits", table.Len())

	data, err := readInput(in)
	if err != nil {
		return err
	}

	instrs := pizip.NewEncoder(table, pizip.WithMaxLookahead(lookahead)).Encode(data)
	stats := summarize(instrs)
	progress("encoded %d bytes: %d table refs covering %d bytes, %d literals",
		len(data), stats.refs, stats.refBytes, stats.literals)

	var written int64
	err = writeOutput(out, func(w io.Writer) error {
		var err error
		if format == formatBinary {
			written, err = pizip.NewArchive(table, data, instrs).WriteTo(w)
		} else {
			written, err = pizip.WriteInstructions(w, instrs)
		}
		return errors.Wrap(err, "writing instructions")
	})
	if err != nil {
		return err
	}
	progress("wrote %d bytes (%s)", written, format)
	return nil
}

type encodeStats struct {
	refs, refBytes, literals int
}

func summarize(instrs []pizip.Instruction) encodeStats {
	var s encodeStats
	for _, in := range instrs {
		switch in.Kind {
		case pizip.KindTableRef:
			s.refs++
			s.refBytes += in.ByteCount
		case pizip.KindLiteral:
			s.literals++
		}
	}
	return s
}
