package oncemap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterOnlyFirstCallerWins(t *testing.T) {
	m := New[string, int]()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Register("foo") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Fatalf("expected exactly one registration, got %d", winners.Load())
	}
	if !m.Registered("foo") || m.Registered("bar") {
		t.Fatalf("unexpected registration state")
	}
}

func TestWaitObservesFirstDone(t *testing.T) {
	m := New[string, int]()
	m.Register("foo")

	results := make(chan int, 4)
	for i := 0; i < 4; i++ {
		go func() {
			v, ok, err := m.Wait(context.Background(), "foo")
			if err != nil || !ok {
				results <- -1
				return
			}
			results <- v
		}()
	}

	time.Sleep(10 * time.Millisecond)
	m.Done("foo", 1)
	m.Done("foo", 2)

	for i := 0; i < 4; i++ {
		if v := <-results; v != 1 {
			t.Fatalf("waiter %d observed %d, expected first value 1", i, v)
		}
	}
	if v, ok := m.Get("foo"); !ok || v != 1 {
		t.Fatalf("Get should return the settled value, got %d %v", v, ok)
	}
}

func TestWaitUnregistered(t *testing.T) {
	m := New[string, int]()
	_, ok, err := m.Wait(context.Background(), "missing")
	if ok || err != nil {
		t.Fatalf("unregistered key should report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	m := New[string, int]()
	m.Register("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := m.Wait(ctx, "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestDoneWithoutRegister(t *testing.T) {
	m := New[string, string]()
	m.Done("foo", "bar")
	if m.Register("foo") {
		t.Fatalf("settled key must not be registrable again")
	}
	if v, _, _ := m.Wait(context.Background(), "foo"); v != "bar" {
		t.Fatalf("unexpected value %q", v)
	}
	if m.Len() != 1 {
		t.Fatalf("expected one key, got %d", m.Len())
	}
}
