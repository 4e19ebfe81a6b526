package main

import (
	"bytes"
	"context"
	"io"

	"github.com/bobg/errors"

	"github.com/seiflotfy/pizip"
)

func doDecode(_ context.Context, in, out, digits string, verbose bool, _ []string) error {
	progress := newProgress(verbose)

	table, err := loadTable(digits)
	if err != nil {
		return err
	}
	progress("digit table ready: %d digits", table.Len())

	raw, err := readInput(in)
	if err != nil {
		return err
	}

	data, err := decodeInput(table, raw)
	if err != nil {
		return err
	}
	progress("decoded %d bytes", len(data))

	return writeOutput(out, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// decodeInput decodes either a binary archive or the text instruction format.
func decodeInput(table *pizip.DigitTable, raw []byte) ([]byte, error) {
	if pizip.IsArchive(raw) {
		var a pizip.Archive
		if err := a.UnmarshalBinary(raw); err != nil {
			return nil, errors.Wrap(err, "reading archive")
		}
		data, err := a.Decode(table)
		if err != nil {
			return nil, errors.Wrap(err, "decoding archive")
		}
		return data, nil
	}

	instrs, err := pizip.ReadInstructions(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "parsing instructions")
	}
	data, err := pizip.Decode(table, instrs)
	if err != nil {
		return nil, errors.Wrap(err, "decoding instructions")
	}
	return data, nil
}
