package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bobg/errors"

	"github.com/seiflotfy/pizip"
	"github.com/seiflotfy/pizip/pidigits"
)

const digitsEnv = "PIZIP_DIGITS"

// digitsPath resolves the digit table file: the flag wins, then the
// environment. An empty result selects the embedded table.
func digitsPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(digitsEnv)
}

func loadTable(flagValue string) (*pizip.DigitTable, error) {
	path := digitsPath(flagValue)
	if path == "" {
		table, err := pidigits.Table()
		if err != nil {
			return nil, errors.Wrap(err, "building embedded digit table")
		}
		return table, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening digit table")
	}
	defer f.Close()

	table, err := pizip.LoadDigitTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading digit table %s", path)
	}
	return table, nil
}

// formatElapsed formats a duration into a human-readable elapsed time string
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes > 0 {
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// newProgress returns a logger that prefixes each message with the time since
// it was created. It prints nothing unless verbose is set.
func newProgress(verbose bool) func(msg string, args ...any) {
	start := time.Now()
	return func(msg string, args ...any) {
		if verbose {
			log.Printf("[%s] "+msg, append([]any{formatElapsed(time.Since(start))}, args...)...)
		}
	}
}
