package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Pool runs a function over a set of items with a fixed number of workers.
type Pool struct {
	workers int
	logger  *slog.Logger
}

func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{workers: workers, logger: logger}
}

// Run feeds items to the workers and waits until all are handled or ctx is
// done. Item errors are logged; the number of failed items is returned.
func (p *Pool) Run(ctx context.Context, items []string, fn func(ctx context.Context, item string) error) int {
	itemCh := make(chan string)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for item := range itemCh {
				if err := fn(ctx, item); err != nil {
					p.logger.Warn("worker item failed", "worker", n, "item", item, "error", err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}(i + 1)
	}

feed:
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case itemCh <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(itemCh)
	wg.Wait()
	return failed
}
