package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm cache, taking the
// set lock the way the service does.
func benchmarkMix(b *testing.B, readsPct int) {
	c := New[string](Options[string]{NumSets: 1024, MaxElemsPerSet: 64})

	for i := 0; i < 32_000; i++ {
		put(c, "k:"+strconv.Itoa(i), "v")
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			mu := c.LockFor(k)
			mu.Lock()
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Put(k, "v")
			}
			mu.Unlock()
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// BenchmarkCache_FullSetSweep measures admission into always-full sets.
func BenchmarkCache_FullSetSweep(b *testing.B) {
	c := New[int](Options[int]{NumSets: 1, MaxElemsPerSet: 256})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := strconv.Itoa(i)
		c.Put(k, i)
		if i%3 == 0 {
			c.Get(k)
		}
	}
}
