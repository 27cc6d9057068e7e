package xlockreg_test

import (
	"context"
	"fmt"

	"github.com/omeyang/xlockkit/pkg/util/xlockreg"
)

func ExampleNew() {
	reg, err := xlockreg.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = reg.Close() }()

	h, err := reg.Acquire("agent", "agent-42")
	if err != nil {
		panic(err)
	}
	if err := h.Lock(); err != nil {
		panic(err)
	}
	fmt.Println("locked:", h.Locked())

	if err := h.Release(); err != nil {
		panic(err)
	}
	fmt.Println("entries before reclaim:", reg.Len())
	reg.ReclaimUnused()
	fmt.Println("entries after reclaim:", reg.Len())
	// Output:
	// locked: true
	// entries before reclaim: 1
	// entries after reclaim: 0
}

func ExampleWithLock() {
	reg, err := xlockreg.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = reg.Close() }()

	err = xlockreg.WithLock(context.Background(), reg, "tenant", "t-1", func(context.Context) error {
		fmt.Println("updating tenant t-1")
		return nil
	})
	fmt.Println("err:", err)
	// Output:
	// updating tenant t-1
	// err: <nil>
}

func ExampleTryWithLock() {
	reg, err := xlockreg.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = reg.Close() }()

	holder, err := reg.Acquire("job", "nightly")
	if err != nil {
		panic(err)
	}
	_ = holder.Lock()

	ran, err := xlockreg.TryWithLock(reg, "job", "nightly", func() error { return nil })
	fmt.Println("ran while held:", ran, err)

	_ = holder.Release()
	ran, err = xlockreg.TryWithLock(reg, "job", "nightly", func() error { return nil })
	fmt.Println("ran after release:", ran, err)
	// Output:
	// ran while held: false <nil>
	// ran after release: true <nil>
}

func ExampleJanitor() {
	reg, err := xlockreg.New(xlockreg.WithIdlePasses(2))
	if err != nil {
		panic(err)
	}
	defer func() { _ = reg.Close() }()

	j, err := xlockreg.NewJanitor(reg, xlockreg.WithSchedule("@every 30s"))
	if err != nil {
		panic(err)
	}

	h, _ := reg.Acquire("agent", "a1")
	_ = h.Release()

	fmt.Println("first pass removed:", j.RunOnce().Removed)
	fmt.Println("second pass removed:", j.RunOnce().Removed)
	// Output:
	// first pass removed: 0
	// second pass removed: 1
}
