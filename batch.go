package pizip

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EncodeAll encodes each input independently, using up to the configured
// number of workers. Results are returned in input order. The only error
// EncodeAll reports is cancellation of ctx.
func (e *Encoder) EncodeAll(ctx context.Context, inputs [][]byte) ([][]Instruction, error) {
	results := make([][]Instruction, len(inputs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(resolveWorkers(e.config))
	for i, input := range inputs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = e.Encode(input)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DecodeAll decodes each sequence independently with up to workers goroutines
// (0 = runtime.NumCPU()). The first failure cancels the remaining work.
func DecodeAll(ctx context.Context, table *DigitTable, seqs [][]Instruction, workers int) ([][]byte, error) {
	results := make([][]byte, len(seqs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(resolveWorkers(Config{Workers: workers}))
	for i, seq := range seqs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := Decode(table, seq)
			if err != nil {
				return fmt.Errorf("sequence %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
