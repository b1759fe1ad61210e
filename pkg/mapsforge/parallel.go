package mapsforge

import (
	"fmt"
	"io"
	"runtime"
	"sync"
)

// ReadOptions controls ReadTilesParallel's concurrency and error handling.
type ReadOptions struct {
	// Workers is the number of concurrent reader goroutines. If 0, defaults
	// to runtime.NumCPU().
	Workers int

	// SkipErrors causes reading to continue past an individual tile's
	// failure, collecting its error, rather than aborting the whole batch.
	SkipErrors bool

	// Progress is an optional callback invoked after each tile is read.
	Progress func(done, total int)

	// ErrorLog is an optional writer for per-tile error reporting.
	ErrorLog io.Writer
}

// DefaultReadOptions returns read options with sensible defaults.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{Workers: runtime.NumCPU(), SkipErrors: true}
}

// ReadTilesParallel reads map data for every bbox in bboxes against the
// same open Reader, using a worker pool so large batches of tile reads
// (e.g. every visible tile in a viewport) fan out across goroutines. Since
// a Reader's underlying index cache and file handle are safe for
// concurrent use, workers share a single Reader rather than opening one
// per goroutine.
func ReadTilesParallel(r Reader, bboxes []BoundingBox, zoom uint8, opts ReadOptions) ([]*MapReadResult, []error) {
	if len(bboxes) == 0 {
		return nil, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(bboxes) {
		workers = len(bboxes)
	}

	type readResult struct {
		index  int
		result *MapReadResult
		err    error
	}

	jobs := make(chan int, len(bboxes))
	results := make(chan readResult, len(bboxes))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				res, err := r.ReadMapData(bboxes[index], zoom)
				results <- readResult{index: index, result: res, err: err}
			}
		}()
	}

	for i := range bboxes {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	resultMap := make(map[int]*MapReadResult)
	var errs []error
	done := 0

	for res := range results {
		done++
		if opts.Progress != nil {
			opts.Progress(done, len(bboxes))
		}

		if res.err != nil {
			err := fmt.Errorf("tile %d: %w", res.index, res.err)
			if opts.ErrorLog != nil {
				fmt.Fprintf(opts.ErrorLog, "error reading tile: %v\n", err)
			}
			if !opts.SkipErrors {
				return nil, []error{err}
			}
			errs = append(errs, err)
			continue
		}

		resultMap[res.index] = res.result
	}

	ordered := make([]*MapReadResult, 0, len(resultMap))
	for i := range bboxes {
		if r, ok := resultMap[i]; ok {
			ordered = append(ordered, r)
		}
	}

	return ordered, errs
}
