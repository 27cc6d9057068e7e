package xlockreg

import (
	"errors"
	"strings"
	"testing"
)

func FuzzAcquireRelease(f *testing.F) {
	f.Add("agent", "key1")
	f.Add("", "key")
	f.Add(" \t", "")
	f.Add("tenant", "key/with/slashes")
	f.Add("租户", "中文key")
	f.Add("a\x00b", "c")

	f.Fuzz(func(t *testing.T, category, key string) {
		r, err := New(WithShardCount(4))
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = r.Close() }()

		h, err := r.Acquire(category, key)
		if strings.TrimSpace(category) == "" {
			if !errors.Is(err, ErrInvalidCategory) {
				t.Fatalf("Acquire(%q): want ErrInvalidCategory, got %v", category, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("Acquire(%q, %q): %v", category, key, err)
		}
		if h.Category() != category || h.Key() != key {
			t.Fatalf("handle identity mismatch: got (%q, %q)", h.Category(), h.Key())
		}
		if !h.TryLock() {
			t.Fatal("TryLock on fresh entry failed")
		}
		if err := h.Release(); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if rep := r.Reclaim(); rep.Removed != 1 || r.Len() != 0 {
			t.Fatalf("Reclaim: removed %d, len %d", rep.Removed, r.Len())
		}
	})
}

// FuzzCategoryKeySeparation 验证 (a, b) 与拼接后可能混淆的 (a+b, "") 得到不同条目。
func FuzzCategoryKeySeparation(f *testing.F) {
	f.Add("ab", "c")
	f.Add("a", "bc")

	f.Fuzz(func(t *testing.T, category, key string) {
		if strings.TrimSpace(category) == "" || key == "" {
			return
		}
		r, err := New()
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = r.Close() }()

		h1, err := r.Acquire(category, key)
		if err != nil {
			t.Fatal(err)
		}
		h2, err := r.Acquire(category+key, "")
		if err != nil {
			t.Fatal(err)
		}
		if h1.Entry() == h2.Entry() {
			t.Fatalf("(%q, %q) and (%q, \"\") share an entry", category, key, category+key)
		}
		_ = h1.Release()
		_ = h2.Release()
	})
}
