package main

import (
	"bufio"
	"io"
	"os"

	"github.com/bobg/errors"
)

const stdio = "-"

func readInput(path string) ([]byte, error) {
	if path == stdio || path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "reading standard input")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

// writeOutput runs write against the named output. When write fails the
// partially written file is removed.
func writeOutput(path string, write func(w io.Writer) error) error {
	if path == stdio || path == "" {
		bw := bufio.NewWriter(os.Stdout)
		if err := write(bw); err != nil {
			return err
		}
		return errors.Wrap(bw.Flush(), "flushing standard output")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	bw := bufio.NewWriter(f)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
