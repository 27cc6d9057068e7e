package xlockreg

import (
	"fmt"
	"testing"
)

func BenchmarkAcquireLockRelease(b *testing.B) {
	r, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	for b.Loop() {
		h, err := r.Acquire("agent", "key")
		if err != nil {
			b.Fatal(err)
		}
		_ = h.Lock()
		_ = h.Release()
	}
}

func BenchmarkAcquireLockReleaseParallel(b *testing.B) {
	// 预计算 key，避免 fmt.Sprintf 影响热路径。
	const numKeys = 100
	keys := make([]string, numKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	for _, shards := range []int{1, 16, 32, 64} {
		b.Run(fmt.Sprintf("shards=%d", shards), func(b *testing.B) {
			r, err := New(WithShardCount(shards))
			if err != nil {
				b.Fatal(err)
			}
			defer func() { _ = r.Close() }()

			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					h, err := r.Acquire("agent", keys[i%numKeys])
					if err != nil {
						continue
					}
					_ = h.Lock()
					_ = h.Release()
					i++
				}
			})
		})
	}
}

func BenchmarkReclaim(b *testing.B) {
	r, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	keys := make([]string, 1000)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	for b.Loop() {
		b.StopTimer()
		for _, k := range keys {
			h, _ := r.Acquire("agent", k)
			_ = h.Release()
		}
		b.StartTimer()
		r.ReclaimUnused()
	}
}
