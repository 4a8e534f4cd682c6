package cache

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store 带标签与TTL的进程内缓存
//
// 值一旦写入即视为不可变快照，调用方不得修改 Get 返回的对象。
// 按标签失效：一个数据集的元数据、预览以及所有查询结果共享 dataset:<id> 标签，
// 编辑后一次 RemoveByTags 即可全部清除。
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	tagIndex map[string]map[string]struct{}

	// epoch 每次按标签失效时递增；tagEpoch 记录标签最近一次失效时的 epoch。
	// GetOrSet 在计算前记下 epoch，若计算期间相关标签被失效则不写回缓存。
	epoch    uint64
	tagEpoch map[string]uint64

	flight     singleflight.Group
	maxEntries int
	now        func() time.Time

	hits          atomic.Uint64
	misses        atomic.Uint64
	evictions     atomic.Uint64
	invalidations atomic.Uint64
}

type entry struct {
	value     any
	expiresAt time.Time // 零值表示永不过期
	tags      []string
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Stats 缓存统计
type Stats struct {
	Entries       int     `json:"entries"`
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Evictions     uint64  `json:"evictions"`
	Invalidations uint64  `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
}

// Option 配置 Store
type Option func(*Store)

// WithMaxEntries 设置容量上限，超出部分在 Cleanup 时按过期时间先后淘汰
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore 创建缓存
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:  make(map[string]*entry),
		tagIndex: make(map[string]map[string]struct{}),
		tagEpoch: make(map[string]uint64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a live entry. It never extends the TTL.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	live := ok && !e.expired(s.now())
	s.mu.RUnlock()

	if !live {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return e.value, true
}

// Set stores value until now+ttl. A ttl <= 0 stores the value without expiry.
func (s *Store) Set(key string, value any, ttl time.Duration, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl, tags)
}

func (s *Store) setLocked(key string, value any, ttl time.Duration, tags []string) {
	if old, ok := s.entries[key]; ok {
		s.unindexLocked(key, old)
	}
	e := &entry{value: value, tags: dedupe(tags)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	for _, tag := range e.tags {
		keys, ok := s.tagIndex[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tagIndex[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// GetOrSet returns the cached value or runs compute once per key among concurrent callers.
//
// A failed compute stores nothing and its error reaches every waiting caller.
// compute runs with the context of the caller that started it; other callers
// stop waiting when their own context is done.
func (s *Store) GetOrSet(ctx context.Context, key string, ttl time.Duration, tags []string, compute func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	s.mu.RLock()
	started := s.epoch
	tagMark := s.maxTagEpochLocked(tags)
	s.mu.RUnlock()

	flightKey := key + "\x00" + strconv.FormatUint(tagMark, 10)
	ch := s.flight.DoChan(flightKey, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cache compute panic for %q: %v\n%s", key, r, debug.Stack())
			}
		}()

		if v, ok := s.peek(key); ok {
			return v, nil
		}
		v, err = compute(ctx)
		if err != nil {
			return nil, err
		}
		s.setIfFresh(key, v, ttl, tags, started)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// peek looks up a live entry without touching the hit/miss counters.
func (s *Store) peek(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		return nil, false
	}
	return e.value, true
}

// setIfFresh stores the value unless one of its tags was invalidated after started.
func (s *Store) setIfFresh(key string, value any, ttl time.Duration, tags []string, started uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxTagEpochLocked(tags) > started {
		return
	}
	s.setLocked(key, value, ttl, tags)
}

func (s *Store) maxTagEpochLocked(tags []string) uint64 {
	var mark uint64
	for _, tag := range tags {
		if e := s.tagEpoch[tag]; e > mark {
			mark = e
		}
	}
	return mark
}

// Delete removes one key.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.unindexLocked(key, e)
	delete(s.entries, key)
	return true
}

// RemoveByTags removes every entry carrying any of tags and returns the count removed.
func (s *Store) RemoveByTags(tags ...string) int {
	if len(tags) == 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	removed := 0
	for _, tag := range tags {
		s.tagEpoch[tag] = s.epoch
		for key := range s.tagIndex[tag] {
			if e, ok := s.entries[key]; ok {
				s.unindexLocked(key, e)
				delete(s.entries, key)
				removed++
			}
		}
		delete(s.tagIndex, tag)
	}
	s.invalidations.Add(uint64(removed))
	return removed
}

// Invalidate is RemoveByTags with the signature shared by cross-instance invalidators.
func (s *Store) Invalidate(_ context.Context, tags ...string) int {
	return s.RemoveByTags(tags...)
}

// Cleanup evicts expired entries, then the soonest-expiring ones while over capacity.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			s.unindexLocked(key, e)
			delete(s.entries, key)
			removed++
		}
	}

	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		keys := make([]string, 0, len(s.entries))
		for key := range s.entries {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := s.entries[keys[i]].expiresAt, s.entries[keys[j]].expiresAt
			// 永不过期的条目最后淘汰
			if a.IsZero() != b.IsZero() {
				return b.IsZero()
			}
			return a.Before(b)
		})
		for _, key := range keys[:len(keys)-s.maxEntries] {
			s.unindexLocked(key, s.entries[key])
			delete(s.entries, key)
			removed++
		}
	}

	s.evictions.Add(uint64(removed))
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns a snapshot of the counters.
func (s *Store) Stats() Stats {
	st := Stats{
		Entries:       s.Len(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Evictions:     s.evictions.Load(),
		Invalidations: s.invalidations.Load(),
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}

func (s *Store) unindexLocked(key string, e *entry) {
	for _, tag := range e.tags {
		if keys, ok := s.tagIndex[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.tagIndex, tag)
			}
		}
	}
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Fetch is GetOrSet with a typed result.
func Fetch[T any](ctx context.Context, s *Store, key string, ttl time.Duration, tags []string, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := s.GetOrSet(ctx, key, ttl, tags, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %q holds %T", key, v)
	}
	return typed, nil
}
