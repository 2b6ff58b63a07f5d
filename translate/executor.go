package translate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the size of the worker pool when none is configured.
const DefaultWorkers = 10

// Executor translates the distinct strings of one document with a fixed pool
// of workers sharing a single queue.
type Executor struct {
	// Client performs the individual translations.
	Client Client
	// Workers is the pool size (0 = DefaultWorkers).
	Workers int
	// OnProgress is called after each string is translated.
	OnProgress func(done, total int)
}

func (e *Executor) effectiveWorkers(n int) int {
	w := e.Workers
	if w <= 0 {
		w = DefaultWorkers
	}
	if w > n {
		w = n
	}
	return w
}

// Run translates every text exactly once and returns when all of them are
// done. The first client error cancels the remaining work and is returned
// wrapped in ErrTranslationFailed; no partial map is returned.
func (e *Executor) Run(ctx context.Context, texts []string, pair LanguagePair) (Map, error) {
	result := make(Map, len(texts))
	if len(texts) == 0 {
		return result, nil
	}

	queue := make(chan string, len(texts))
	for _, s := range texts {
		queue <- s
	}
	close(queue)

	var (
		mu    sync.Mutex
		done  atomic.Int64
		total = len(texts)
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.effectiveWorkers(total); i++ {
		g.Go(func() error {
			for text := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				translated, err := e.Client.Translate(gctx, text, pair)
				if err != nil {
					return fmt.Errorf("%w: %q: %w", ErrTranslationFailed, truncate(text, 60), err)
				}

				mu.Lock()
				result[text] = translated
				mu.Unlock()

				n := done.Add(1)
				if e.OnProgress != nil {
					e.OnProgress(int(n), total)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
