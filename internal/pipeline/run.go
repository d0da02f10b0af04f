package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"voxelcraft.ai/signdump/internal/faults"
)

type Summary struct {
	Files   int
	OK      int
	Failed  int
	Skipped int
	Chunks  int
	Signs   int
	Bytes   int64
	Elapsed time.Duration

	Failures []FileResult
}

// ListRegionFiles returns the regular files of dir in name order.
func ListRegionFiles(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfig, fmt.Errorf("input: %w", err))
	}
	if !st.IsDir() {
		return nil, faults.New(faults.ErrConfig, "input %s is not a directory", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, fmt.Errorf("read input dir: %w", err))
	}
	paths := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Run processes every path on a pool of opts.Workers goroutines. With
// FailFast the first failing file cancels files not yet started and its
// error is returned; otherwise failures are only counted in the summary.
func Run(ctx context.Context, paths []string, sink *Sink, opts Options) (Summary, error) {
	start := time.Now()
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		sum = Summary{Files: len(paths)}
	)
	record := func(res FileResult) {
		mu.Lock()
		defer mu.Unlock()
		sum.Chunks += res.Chunks
		sum.Signs += len(res.Signs)
		sum.Bytes += int64(res.Bytes)
		if res.Err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, res)
		} else {
			sum.OK++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := ProcessFile(path, sink, opts)
			record(res)
			opts.Progress.Inc()
			if opts.Observer != nil {
				opts.Observer.FileDone(res)
			}
			if res.Err == nil {
				return nil
			}
			if opts.Logger != nil {
				opts.Logger.Printf("file failed: %v", res.Err)
			}
			if opts.FailFast {
				return res.Err
			}
			return nil
		})
	}
	err := g.Wait()

	sum.Skipped = sum.Files - sum.OK - sum.Failed
	sum.Elapsed = time.Since(start)
	sort.Slice(sum.Failures, func(i, j int) bool { return sum.Failures[i].Path < sum.Failures[j].Path })
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return sum, err
}
