package xlockreg

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// registry 是 Registry 的分片实现。
type registry struct {
	shards []shard
	mask   uint64
	opts   *options

	closed     atomic.Bool
	done       chan struct{}
	entryCount atomic.Int64
	nextID     atomic.Uint64

	acquires    atomic.Uint64
	reclaimRuns atomic.Uint64
	reclaimed   atomic.Uint64
}

// shard 持有一部分 (category, key) 条目。
// mu 即该分片的元锁，categories 及其中的 slot 只能在持有 mu 时读写。
type shard struct {
	mu         sync.Mutex
	categories map[string]map[string]*slot
}

// slot 是条目的簿记：refs 为未归还的句柄数，idle 为连续观察到空闲的回收轮次。
type slot struct {
	entry *Entry
	refs  int32
	idle  int
}

func newRegistry(opts *options) *registry {
	shards := make([]shard, opts.shardCount)
	for i := range shards {
		shards[i].categories = make(map[string]map[string]*slot)
	}
	return &registry{
		shards: shards,
		mask:   uint64(opts.shardCount - 1),
		opts:   opts,
		done:   make(chan struct{}),
	}
}

func validateCategory(category string) error {
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return nil
}

func (r *registry) getShard(category, key string) *shard {
	var d xxhash.Digest
	d.Reset()
	_, _ = d.WriteString(category)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(key)
	return &r.shards[d.Sum64()&r.mask]
}

// reserveEntry 为新条目占用一个名额。
// 使用 CAS 严格限制条目数量，避免跨分片并发突破上限。
func (r *registry) reserveEntry() error {
	if r.opts.maxEntries <= 0 {
		r.entryCount.Add(1)
		return nil
	}
	for {
		cur := r.entryCount.Load()
		if cur >= int64(r.opts.maxEntries) {
			return ErrMaxEntriesExceeded
		}
		if r.entryCount.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

func (r *registry) Acquire(category, key string) (*Handle, error) {
	if err := validateCategory(category); err != nil {
		return nil, err
	}
	if r.closed.Load() {
		return nil, ErrClosed
	}

	s := r.getShard(category, key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed.Load() {
		return nil, ErrClosed
	}

	keys := s.categories[category]
	sl, ok := keys[key]
	if !ok {
		if err := r.reserveEntry(); err != nil {
			return nil, err
		}
		if keys == nil {
			keys = make(map[string]*slot)
			s.categories[category] = keys
		}
		sl = &slot{entry: newEntry(r.nextID.Add(1))}
		keys[key] = sl
	}
	sl.refs++
	sl.idle = 0
	r.acquires.Add(1)

	return &Handle{
		reg:      r,
		shard:    s,
		slot:     sl,
		category: category,
		key:      key,
		entry:    sl.entry,
	}, nil
}

// checkIn 归还句柄对条目的引用。
func (r *registry) checkIn(h *Handle) {
	s := h.shard
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := h.slot
	sl.refs--
	if sl.refs == 0 && r.opts.eagerReclaim && !sl.entry.held() {
		r.removeLocked(s, h.category, h.key, sl)
	}
}

// removeLocked 删除条目，category 变空时一并删除。调用方必须持有 s.mu。
func (r *registry) removeLocked(s *shard, category, key string, sl *slot) {
	keys := s.categories[category]
	if keys[key] != sl {
		return
	}
	delete(keys, key)
	r.entryCount.Add(-1)
	r.reclaimed.Add(1)
	if len(keys) == 0 {
		delete(s.categories, category)
	}
}

func (r *registry) Reclaim() ReclaimReport {
	start := time.Now()
	var rep ReclaimReport

	for i := range r.shards {
		s := &r.shards[i]
		removed := 0
		s.mu.Lock()
		for category, keys := range s.categories {
			for key, sl := range keys {
				rep.Scanned++
				if sl.refs > 0 || sl.entry.held() {
					sl.idle = 0
					rep.Retained++
					continue
				}
				sl.idle++
				if sl.idle < r.opts.idlePasses {
					rep.Retained++
					continue
				}
				delete(keys, key)
				removed++
			}
			if len(keys) == 0 {
				delete(s.categories, category)
				rep.RemovedCategories++
			}
		}
		// 每个分片扫描完立即归还名额，其他分片上的 Acquire 不会看到过期的计数。
		if removed > 0 {
			r.entryCount.Add(-int64(removed))
			r.reclaimed.Add(uint64(removed))
			rep.Removed += removed
		}
		s.mu.Unlock()
	}

	r.reclaimRuns.Add(1)
	rep.Duration = time.Since(start)

	r.opts.logger.Debug(context.Background(), "lock registry reclaimed",
		slog.Int("scanned", rep.Scanned),
		slog.Int("removed", rep.Removed),
		slog.Int("retained", rep.Retained),
		slog.Duration("duration", rep.Duration),
	)
	return rep
}

func (r *registry) ReclaimUnused() {
	r.Reclaim()
}

func (r *registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(r.done)
	return nil
}

// 编译期接口检查。
var _ Registry = (*registry)(nil)
