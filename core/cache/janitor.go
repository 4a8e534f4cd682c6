package cache

import (
	"context"
	"sync"
	"time"

	"github.com/gogf/gf/v2/frame/g"
)

// Janitor 定期清理过期缓存
type Janitor struct {
	store    *Store
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor 创建清理器
func NewJanitor(store *Store, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{store: store, interval: interval}
}

// Start runs Cleanup every interval until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		g.Log().Infof(ctx, "Cache janitor started, interval: %s", j.interval)
		for {
			select {
			case <-ctx.Done():
				g.Log().Info(ctx, "Cache janitor stopped")
				return
			case <-ticker.C:
				if removed := j.store.Cleanup(); removed > 0 {
					g.Log().Debugf(ctx, "Cache cleanup removed %d entries, %d remaining", removed, j.store.Len())
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
		j.wg.Wait()
	}
}
