// Command bench runs a synthetic workload against an in-process key-value
// service and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/kvcache/cache"
	"github.com/IvanBrykalov/kvcache/kv"
	"github.com/IvanBrykalov/kvcache/kverr"
	pmet "github.com/IvanBrykalov/kvcache/metrics/prom"
	"github.com/IvanBrykalov/kvcache/store"
)

func main() {
	// ---- Flags ----
	var (
		numSets  = flag.Int("sets", 1024, "number of cache sets")
		perSet   = flag.Int("per-set", 16, "entries per cache set")
		policy   = flag.String("policy", "clock", "eviction policy: clock | lru | 2q")
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")
		delPct   = flag.Int("dels", 0, "delete percentage of writes [0..100]")

		keys    = flag.Int("keys", 100_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload keys (0 = keys/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":9090", "serve Prometheus metrics at addr; empty = disabled")
	)
	flag.Parse()

	// ---- pprof + Prometheus (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	// ---- Build service ----
	pol, err := cache.PolicyByName[string](*policy, *perSet)
	if err != nil {
		log.Fatal(err)
	}
	svc := kv.New(kv.Options{
		Cache: cache.New(cache.Options[string]{
			NumSets:        *numSets,
			MaxElemsPerSet: *perSet,
			Policy:         pol,
			Metrics:        pmet.New(nil, "kvcache", "bench", nil),
		}),
		Store:    store.NewMemory(),
		Observer: pmet.NewObserver(nil, "kvcache_bench", nil),
	})

	ctx := context.Background()
	pl := *preload
	if pl == 0 {
		pl = *keys / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		if err := svc.Put(ctx, k, "v"+strconv.Itoa(i)); err != nil {
			log.Fatal(err)
		}
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal, delPctVal := *readPct, *delPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	workersN := max(*workers, 1)

	// ---- Load generation ----
	var reads, writes, dels, found, absent, failed, total atomic.Uint64
	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			zipf := rand.NewZipf(r, *zipfS, *zipfV, keysMax)
			key := func() string { return "k:" + strconv.FormatUint(zipf.Uint64(), 10) }

			for runCtx.Err() == nil {
				total.Add(1)
				switch {
				case int(r.Int31n(100)) < readPctVal:
					reads.Add(1)
					_, err := svc.Get(ctx, key())
					switch {
					case err == nil:
						found.Add(1)
					case errors.Is(err, kverr.NotFound):
						absent.Add(1)
					default:
						failed.Add(1)
					}
				case int(r.Int31n(100)) < delPctVal:
					dels.Add(1)
					if err := svc.Del(ctx, key()); err != nil && !errors.Is(err, kverr.NotFound) {
						failed.Add(1)
					}
				default:
					writes.Add(1)
					if err := svc.Put(ctx, key(), "v"+strconv.Itoa(r.Int())); err != nil {
						failed.Add(1)
					}
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	st := svc.Cache().Stats()
	hitRate := 0.0
	if n := st.Hits + st.Misses; n > 0 {
		hitRate = float64(st.Hits) / float64(n) * 100
	}
	ops := total.Load()
	fmt.Printf("policy=%s sets=%d per-set=%d workers=%d keys=%d dur=%v seed=%d\n",
		*policy, *numSets, *perSet, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  dels=%d  failed=%d\n",
		ops, float64(ops)/elapsed.Seconds(), reads.Load(), writes.Load(), dels.Load(), failed.Load())
	fmt.Printf("found=%d  absent=%d\n", found.Load(), absent.Load())
	fmt.Printf("cache hits=%d  misses=%d  hit-rate=%.2f%%  evictions=%d  resident=%d\n",
		st.Hits, st.Misses, hitRate, st.Evictions, st.Entries)
}
