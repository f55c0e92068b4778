package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_JoinsInFlightCall(t *testing.T) {
	t.Parallel()
	var g Group[string, int]
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	fn := func() (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	shared := make([]bool, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], shared[0], _ = g.Do(context.Background(), "k", fn)
	}()
	<-started
	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], shared[i], _ = g.Do(context.Background(), "k", fn)
		}(i)
	}
	// Let the followers park on the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fn ran %d times, want 1", got)
	}
	for i := range results {
		if results[i] != 42 || !shared[i] {
			t.Fatalf("caller %d: got (%d, shared=%v)", i, results[i], shared[i])
		}
	}
}

func TestDo_SequentialCallsRunAgain(t *testing.T) {
	t.Parallel()
	var g Group[string, int]
	n := 0
	fn := func() (int, error) { n++; return n, nil }

	v1, s1, _ := g.Do(context.Background(), "k", fn)
	v2, s2, _ := g.Do(context.Background(), "k", fn)
	if v1 != 1 || v2 != 2 || s1 || s2 {
		t.Fatalf("got (%d,%v) (%d,%v)", v1, s1, v2, s2)
	}
}

func TestDo_ErrorIsShared(t *testing.T) {
	t.Parallel()
	var g Group[string, string]
	boom := errors.New("boom")
	_, _, err := g.Do(context.Background(), "k", func() (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestDo_FollowerContextCancel(t *testing.T) {
	t.Parallel()
	var g Group[string, int]
	release := make(chan struct{})
	started := make(chan struct{})
	leaderDone := make(chan int)

	go func() {
		v, _, _ := g.Do(context.Background(), "k", func() (int, error) {
			close(started)
			<-release
			return 7, nil
		})
		leaderDone <- v
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := g.Do(ctx, "k", func() (int, error) { return 0, nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("follower err = %v, want context.Canceled", err)
	}

	close(release)
	if v := <-leaderDone; v != 7 {
		t.Fatalf("leader got %d, want 7", v)
	}
}

func TestForget(t *testing.T) {
	t.Parallel()
	var g Group[string, int]
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _, _ = g.Do(context.Background(), "k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started
	g.Forget("k")

	v, shared, _ := g.Do(context.Background(), "k", func() (int, error) { return 2, nil })
	close(release)
	if v != 2 || shared {
		t.Fatalf("after Forget got (%d, shared=%v), want a fresh call", v, shared)
	}
}
