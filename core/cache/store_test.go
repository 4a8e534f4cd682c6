package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreTTL(t *testing.T) {
	t.Run("过期后不可见", func(t *testing.T) {
		s := NewStore()
		s.Set("key", "v", time.Millisecond)
		time.Sleep(2 * time.Millisecond)
		_, ok := s.Get("key")
		assert.False(t, ok)
	})

	t.Run("读取不延长TTL", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))
		s.Set("key", "v", 10*time.Second)

		clock.Advance(6 * time.Second)
		v, ok := s.Get("key")
		require.True(t, ok)
		assert.Equal(t, "v", v)

		clock.Advance(6 * time.Second)
		_, ok = s.Get("key")
		assert.False(t, ok)
	})

	t.Run("ttl<=0 永不过期", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))
		s.Set("key", "v", 0)
		clock.Advance(24 * time.Hour)
		_, ok := s.Get("key")
		assert.True(t, ok)
	})
}

func TestStoreSetOverwrites(t *testing.T) {
	s := NewStore()
	s.Set("key", 1, time.Minute, "old")
	s.Set("key", 2, time.Minute, "new")

	v, ok := s.Get("key")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	// 旧标签不再关联该 key
	assert.Equal(t, 0, s.RemoveByTags("old"))
	_, ok = s.Get("key")
	assert.True(t, ok)
	assert.Equal(t, 1, s.RemoveByTags("new"))
}

func TestStoreRemoveByTags(t *testing.T) {
	s := NewStore()
	s.Set("a", 1, time.Minute, "dataset:X")
	s.Set("b", 2, time.Minute, "dataset:X", "preview")
	s.Set("c", 3, time.Minute, "dataset:Y")

	removed := s.RemoveByTags("dataset:X")
	assert.Equal(t, 2, removed)

	_, okA := s.Get("a")
	_, okB := s.Get("b")
	v, okC := s.Get("c")
	assert.False(t, okA)
	assert.False(t, okB)
	require.True(t, okC)
	assert.Equal(t, 3, v)
	assert.Equal(t, uint64(2), s.Stats().Invalidations)
}

func TestStoreGetOrSet(t *testing.T) {
	ctx := context.Background()

	t.Run("命中时不调用compute", func(t *testing.T) {
		s := NewStore()
		s.Set("k", "cached", time.Minute)
		v, err := s.GetOrSet(ctx, "k", time.Minute, nil, func(context.Context) (any, error) {
			t.Fatal("compute should not run")
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "cached", v)
	})

	t.Run("compute失败不写缓存", func(t *testing.T) {
		s := NewStore()
		boom := errors.New("boom")
		_, err := s.GetOrSet(ctx, "k", time.Minute, nil, func(context.Context) (any, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, s.Len())

		v, err := s.GetOrSet(ctx, "k", time.Minute, nil, func(context.Context) (any, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("compute panic转换为错误", func(t *testing.T) {
		s := NewStore()
		_, err := s.GetOrSet(ctx, "k", time.Minute, nil, func(context.Context) (any, error) {
			panic("bad")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad")
		assert.Equal(t, 0, s.Len())
	})
}

func TestStoreGetOrSetSingleFlight(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]any, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.GetOrSet(ctx, "hot", time.Minute, []string{"dataset:1"}, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// 等所有调用方进入等待后再放行
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
}

func TestStoreGetOrSetDistinctKeysRunConcurrently(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	compute := func(context.Context) (any, error) {
		started <- struct{}{}
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _ = s.GetOrSet(ctx, key, time.Minute, nil, compute)
		}(key)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("unrelated keys were serialized")
		}
	}
	close(release)
	wg.Wait()
}

func TestStoreGetOrSetSkipsStaleWrite(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	inCompute := make(chan struct{})
	release := make(chan struct{})
	done := make(chan any)
	go func() {
		v, _ := s.GetOrSet(ctx, "meta", time.Minute, []string{"dataset:1"}, func(context.Context) (any, error) {
			close(inCompute)
			<-release
			return "stale", nil
		})
		done <- v
	}()

	<-inCompute
	// 计算进行中数据集被更新并失效
	s.RemoveByTags("dataset:1")

	// 失效之后的调用不会加入旧的计算
	v, err := s.GetOrSet(ctx, "meta", time.Minute, []string{"dataset:1"}, func(context.Context) (any, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	close(release)
	assert.Equal(t, "stale", <-done)

	got, ok := s.Get("meta")
	require.True(t, ok)
	assert.Equal(t, "fresh", got)
}

func TestStoreGetOrSetWaiterCancel(t *testing.T) {
	s := NewStore()
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = s.GetOrSet(context.Background(), "slow", time.Minute, nil, func(context.Context) (any, error) {
			<-release
			return 1, nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.GetOrSet(ctx, "slow", time.Minute, nil, func(context.Context) (any, error) {
		return 2, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStoreCleanup(t *testing.T) {
	t.Run("清除过期条目", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))
		s.Set("short", 1, time.Second, "t")
		s.Set("long", 2, time.Hour, "t")

		clock.Advance(2 * time.Second)
		assert.Equal(t, 1, s.Cleanup())
		assert.Equal(t, 1, s.Len())
		assert.Equal(t, 1, s.RemoveByTags("t"))
	})

	t.Run("超出容量按过期时间淘汰", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now), WithMaxEntries(2))
		s.Set("a", 1, time.Minute)
		s.Set("b", 2, 3*time.Minute)
		s.Set("c", 3, 2*time.Minute)
		s.Set("d", 4, 0)

		assert.Equal(t, 2, s.Cleanup())
		_, okA := s.Get("a")
		_, okC := s.Get("c")
		_, okB := s.Get("b")
		_, okD := s.Get("d")
		assert.False(t, okA)
		assert.False(t, okC)
		assert.True(t, okB)
		assert.True(t, okD)
		assert.Equal(t, uint64(2), s.Stats().Evictions)
	})
}

func TestStoreStats(t *testing.T) {
	s := NewStore()
	s.Set("k", 1, time.Minute)
	s.Get("k")
	s.Get("k")
	s.Get("missing")

	st := s.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.InDelta(t, 2.0/3.0, st.HitRate, 1e-9)
}

func TestFetch(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	type payload struct{ N int }
	got, err := Fetch(ctx, s, "p", time.Minute, nil, func(context.Context) (*payload, error) {
		return &payload{N: 7}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got.N)

	s.Set("wrong", "string", time.Minute)
	_, err = Fetch(ctx, s, "wrong", time.Minute, nil, func(context.Context) (*payload, error) {
		return nil, nil
	})
	assert.Error(t, err)
}
