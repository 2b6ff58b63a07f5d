package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/minios-linux/doctrans/ooxml"
)

// Result is the outcome of one input file.
type Result struct {
	// Input is the file as given.
	Input string
	// Output is the translated document (empty on failure).
	Output string
	// Published is where the output was uploaded, if publishing is on.
	Published string
	// Err is the failure, if any.
	Err error
	// Kind classifies Err.
	Kind Kind
}

// OK reports whether the file was translated.
func (r Result) OK() bool { return r.Err == nil }

// Publisher delivers a finished output somewhere else.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Batch translates many documents. One failed document never stops the
// others.
type Batch struct {
	// Orchestrator runs each document.
	Orchestrator *Orchestrator
	// Jobs is how many documents run at once (0 or 1 = sequential).
	Jobs int
	// Publisher, if set, receives every successful output.
	Publisher Publisher
	// OnResult is called as each document finishes.
	OnResult func(Result)
}

// Run translates paths and returns one result per path, in input order.
func (b *Batch) Run(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))
	var mu sync.Mutex

	indexes := make([]int, len(paths))
	for i := range indexes {
		indexes[i] = i
	}

	runParallel(ctx, indexes, b.Jobs, func(ctx context.Context, i int) {
		res := b.runOne(ctx, paths[i])
		mu.Lock()
		results[i] = res
		if b.OnResult != nil {
			b.OnResult(res)
		}
		mu.Unlock()
	})

	// Files never started because the batch was canceled.
	for i := range results {
		if results[i].Input == "" {
			results[i] = Result{Input: paths[i], Err: ctx.Err(), Kind: Classify(ctx.Err())}
		}
	}
	return results
}

func (b *Batch) runOne(ctx context.Context, path string) Result {
	res := Result{Input: path}
	out, err := b.Orchestrator.Run(ctx, path)
	if err == nil && b.Publisher != nil {
		var url string
		url, err = b.Publisher.Publish(ctx, out)
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrPublish, out, err)
		}
		res.Published = url
	}
	res.Output = out
	res.Err = err
	res.Kind = Classify(err)
	return res
}

// runParallel runs fn for every task with at most maxConcurrent at once.
// Tasks not yet started when ctx is canceled are skipped.
func runParallel[T any](ctx context.Context, tasks []T, maxConcurrent int, fn func(context.Context, T)) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, task := range tasks {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)

		go func(t T) {
			defer func() {
				<-sem
				wg.Done()
			}()
			fn(ctx, t)
		}(task)
	}

	wg.Wait()
}

// ---------------------------------------------------------------------------
// Input expansion
// ---------------------------------------------------------------------------

// Expand replaces every directory in inputs with the supported documents
// found under it (recursively, sorted). Plain files are kept as given, so an
// unsupported file still gets its own BadExtension result. Previous outputs
// (names ending in suffix) and Office lock files (~$name) are skipped.
func Expand(inputs []string, suffix string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			out = append(out, in)
			continue
		}
		var found []string
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != in && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, "~$") {
				return nil
			}
			if _, err := ooxml.FormatOf(name); err != nil {
				return nil
			}
			if suffix != "" && strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), suffix) {
				return nil
			}
			found = append(found, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", in, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
