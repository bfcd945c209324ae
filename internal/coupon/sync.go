package coupon

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Upserter persists coupon definitions.
type Upserter interface {
	Upsert(ctx context.Context, defs []Definition) error
}

// Sync loads every definition file concurrently and upserts the merged result.
// When a code appears in several files the later file wins.
func Sync(ctx context.Context, loader Loader, paths []string, store Upserter, logger zerolog.Logger) (int, error) {
	logger = logger.With().Str("component", "coupon-sync").Logger()

	if len(paths) == 0 {
		logger.Info().Msg("no coupon files configured")
		return 0, nil
	}

	type loadResult struct {
		index int
		defs  []Definition
		err   error
	}

	resultChan := make(chan loadResult, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()
			defs, err := loader.Load(ctx, path)
			resultChan <- loadResult{index: index, defs: defs, err: err}
		}(i, path)
	}

	wg.Wait()
	close(resultChan)

	results := make([]loadResult, len(paths))
	for result := range resultChan {
		results[result.index] = result
	}

	merged := make(map[string]int)
	var defs []Definition
	for i, result := range results {
		if result.err != nil {
			logger.Error().Err(result.err).Str("file", paths[i]).Msg("failed to load coupon file")
			return 0, fmt.Errorf("failed to load coupon file %s: %w", paths[i], result.err)
		}
		for _, d := range result.defs {
			if pos, ok := merged[d.Code]; ok {
				defs[pos] = d
				continue
			}
			merged[d.Code] = len(defs)
			defs = append(defs, d)
		}
	}

	if err := store.Upsert(ctx, defs); err != nil {
		return 0, err
	}

	logger.Info().
		Int("file_count", len(paths)).
		Int("coupon_count", len(defs)).
		Msg("coupon definitions synchronised")

	return len(defs), nil
}
