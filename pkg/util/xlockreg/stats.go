package xlockreg

// Stats 是 Registry 的统计快照。
// 各分片分别加锁采集，不保证跨分片原子性。
type Stats struct {
	// Entries 当前条目数。
	Entries int
	// Categories 当前不同 category 的数量。
	Categories int
	// Outstanding 已签出但尚未归还的句柄数。
	Outstanding int
	// Held 当前被持有的条目数。
	Held int
	// Acquires 累计 Acquire 成功次数。
	Acquires uint64
	// ReclaimRuns 累计 Reclaim 次数。
	ReclaimRuns uint64
	// Reclaimed 累计被回收的条目数（含 WithEagerReclaim 的即时删除）。
	Reclaimed uint64
}

func (r *registry) Len() int {
	return int(max(r.entryCount.Load(), 0))
}

func (r *registry) Keys() []LockKey {
	keys := make([]LockKey, 0, r.Len())
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for category, entries := range s.categories {
			for key := range entries {
				keys = append(keys, LockKey{Category: category, Key: key})
			}
		}
		s.mu.Unlock()
	}
	return keys
}

func (r *registry) Stats() Stats {
	st := Stats{
		Acquires:    r.acquires.Load(),
		ReclaimRuns: r.reclaimRuns.Load(),
		Reclaimed:   r.reclaimed.Load(),
	}
	// 同一 category 可能分布在多个分片中，需要去重。
	categories := make(map[string]struct{})
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for category, entries := range s.categories {
			categories[category] = struct{}{}
			for _, sl := range entries {
				st.Entries++
				st.Outstanding += int(sl.refs)
				if sl.entry.held() {
					st.Held++
				}
			}
		}
		s.mu.Unlock()
	}
	st.Categories = len(categories)
	return st
}
