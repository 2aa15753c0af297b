package correlation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestResolveDeliversToMatchingWait(t *testing.T) {
	tbl := NewTable[string]()
	ch, cancel := tbl.Register("abc")
	defer cancel()

	if !tbl.Resolve("abc", "ok") {
		t.Fatal("Resolve returned false for a registered wait")
	}
	got, err := tbl.Await(context.Background(), "abc", ch, time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got != "ok" {
		t.Fatalf("got %q, want %q", got, "ok")
	}
}

func TestResolveUnknownIDIsDropped(t *testing.T) {
	tbl := NewTable[int]()
	if tbl.Resolve("nobody-waiting", 42) {
		t.Fatal("Resolve returned true for an unregistered id")
	}
}

func TestAwaitTimesOut(t *testing.T) {
	tbl := NewTable[int]()
	ch, cancel := tbl.Register("slow")
	defer cancel()

	_, err := tbl.Await(context.Background(), "slow", ch, 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if n := tbl.Pending(); n != 0 {
		t.Fatalf("pending waits after timeout = %d, want 0", n)
	}
}

func TestAwaitHonorsContextCancellation(t *testing.T) {
	tbl := NewTable[int]()
	ch, cancel := tbl.Register("canceled")
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stop()
	_, err := tbl.Await(ctx, "canceled", ch, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n := tbl.Pending(); n != 0 {
		t.Fatalf("pending waits after cancel = %d, want 0", n)
	}
}

// A reply arriving after its wait timed out must not reach a later wait,
// even one registered immediately afterwards.
func TestLateReplyDoesNotLeakIntoLaterWait(t *testing.T) {
	tbl := NewTable[string]()

	ch1, cancel1 := tbl.Register("first")
	defer cancel1()
	if _, err := tbl.Await(context.Background(), "first", ch1, time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}

	ch2, cancel2 := tbl.Register("second")
	defer cancel2()

	// Stale reply for the timed-out wait.
	if tbl.Resolve("first", "stale") {
		t.Fatal("stale reply was delivered somewhere")
	}

	select {
	case v := <-ch2:
		t.Fatalf("later wait received %q", v)
	case <-time.After(20 * time.Millisecond):
	}
}

// Concurrent waits with distinct ids must each receive exactly their own
// reply regardless of delivery order.
func TestConcurrentWaitsReceiveOwnReplies(t *testing.T) {
	tbl := NewTable[string]()
	const n = 50

	type reg struct {
		id string
		ch <-chan string
	}
	regs := make([]reg, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("req-%d", i)
		ch, cancel := tbl.Register(id)
		defer cancel()
		regs = append(regs, reg{id: id, ch: ch})
	}

	// Resolve in reverse order from several goroutines.
	var resolvers sync.WaitGroup
	for i := n - 1; i >= 0; i-- {
		resolvers.Add(1)
		go func(i int) {
			defer resolvers.Done()
			tbl.Resolve(fmt.Sprintf("req-%d", i), fmt.Sprintf("resp-%d", i))
		}(i)
	}

	var waiters sync.WaitGroup
	errs := make(chan error, n)
	for i, r := range regs {
		waiters.Add(1)
		go func(i int, r reg) {
			defer waiters.Done()
			got, err := tbl.Await(context.Background(), r.id, r.ch, time.Second)
			if err != nil {
				errs <- fmt.Errorf("wait %d: %v", i, err)
				return
			}
			if want := fmt.Sprintf("resp-%d", i); got != want {
				errs <- fmt.Errorf("wait %d got %q, want %q", i, got, want)
			}
		}(i, r)
	}

	resolvers.Wait()
	waiters.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if n := tbl.Pending(); n != 0 {
		t.Fatalf("pending waits = %d, want 0", n)
	}
}

func TestResolveIsAtMostOnce(t *testing.T) {
	tbl := NewTable[int]()
	_, cancel := tbl.Register("once")
	defer cancel()

	if !tbl.Resolve("once", 1) {
		t.Fatal("first Resolve failed")
	}
	if tbl.Resolve("once", 2) {
		t.Fatal("second Resolve succeeded; wait resolved twice")
	}
}
