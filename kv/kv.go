// Package kv is the key-value service: it validates requests and runs them
// against the set-associative cache and the backing store.
//
// Lock protocol: whenever both the store lock and a cache set lock are held,
// the store lock is taken first and released last. Get takes only the set
// lock on a hit; on a miss it drops the set lock and re-acquires both in
// store-then-cache order before filling the cache. Once a request holds its
// locks it runs to completion: store calls see a context that is never
// cancelled.
package kv

import (
	"context"
	"time"

	"github.com/IvanBrykalov/kvcache/cache"
	"github.com/IvanBrykalov/kvcache/kverr"
	"github.com/IvanBrykalov/kvcache/store"
)

// Options configures a Service. Cache and Store are required; a nil
// Observer means NopObserver.
type Options struct {
	Cache    cache.Cache[string]
	Store    *store.Store
	Observer Observer
}

// Service orchestrates cache and store per request. It is safe for
// concurrent use.
type Service struct {
	cache cache.Cache[string]
	store *store.Store
	obs   Observer
}

// New builds a Service. It panics if Cache or Store is nil.
func New(opt Options) *Service {
	if opt.Cache == nil || opt.Store == nil {
		panic("kv: Cache and Store are required")
	}
	if opt.Observer == nil {
		opt.Observer = NopObserver{}
	}
	return &Service{cache: opt.Cache, store: opt.Store, obs: opt.Observer}
}

// NewDefault builds a Service over a CLOCK cache of the given geometry and
// an in-memory store.
func NewDefault(numSets, maxElemsPerSet int) *Service {
	return New(Options{
		Cache: cache.New(cache.Options[string]{NumSets: numSets, MaxElemsPerSet: maxElemsPerSet}),
		Store: store.NewMemory(),
	})
}

// Cache returns the front cache.
func (s *Service) Cache() cache.Cache[string] { return s.cache }

// Store returns the backing store.
func (s *Service) Store() *store.Store { return s.store }

// Put stores key → value and writes it through to the cache.
func (s *Service) Put(ctx context.Context, key, value string) (err error) {
	done := s.track(LayerService, OpPut, key)
	defer func() { done(err) }()

	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateValue(value); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	smu := s.store.Lock()
	smu.Lock()
	defer smu.Unlock()
	cmu := s.cache.LockFor(key)
	cmu.Lock()
	defer cmu.Unlock()

	if err := s.storePut(ctx, key, value); err != nil {
		return err
	}
	s.cachePut(key, value)
	return nil
}

// Get returns the value of key, serving it from the cache when possible.
func (s *Service) Get(ctx context.Context, key string) (v string, err error) {
	done := s.track(LayerService, OpGet, key)
	defer func() { done(err) }()

	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ctx = context.WithoutCancel(ctx)

	if v, ok := s.getCached(key); ok {
		return v, nil
	}
	return s.getThrough(ctx, key)
}

// getCached is the hit path: the set lock alone.
func (s *Service) getCached(key string) (string, bool) {
	cmu := s.cache.LockFor(key)
	cmu.Lock()
	defer cmu.Unlock()
	return s.cacheGet(key)
}

// getThrough is the miss path: store read lock, then the set lock. The
// cache is checked again because another request may have filled it; that
// check is a Peek so one logical miss counts once.
func (s *Service) getThrough(ctx context.Context, key string) (string, error) {
	smu := s.store.Lock()
	smu.RLock()
	defer smu.RUnlock()
	cmu := s.cache.LockFor(key)
	cmu.Lock()
	defer cmu.Unlock()

	if v, ok := s.cache.Peek(key); ok {
		return v, nil
	}
	v, err := s.storeGet(ctx, key)
	if err != nil {
		return "", err
	}
	s.cachePut(key, v)
	return v, nil
}

// Del removes key from store and cache. An absent key fails with NotFound
// and leaves both untouched.
func (s *Service) Del(ctx context.Context, key string) (err error) {
	done := s.track(LayerService, OpDel, key)
	defer func() { done(err) }()

	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	smu := s.store.Lock()
	smu.Lock()
	defer smu.Unlock()
	cmu := s.cache.LockFor(key)
	cmu.Lock()
	defer cmu.Unlock()

	ok, err := s.store.Has(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return kverr.E(kverr.NotFound, "kv.del")
	}
	s.cacheDel(key)
	return s.storeDel(ctx, key)
}

// Dump writes a store snapshot to path under the store read lock.
func (s *Service) Dump(ctx context.Context, path string) error {
	smu := s.store.Lock()
	smu.RLock()
	defer smu.RUnlock()
	return s.store.DumpFile(context.WithoutCancel(ctx), path)
}

// Restore replaces the store contents with the snapshot at path and empties
// the cache. It holds the store write lock and every set lock, taken in
// index order, so no request observes a half-restored state.
func (s *Service) Restore(ctx context.Context, path string) error {
	smu := s.store.Lock()
	smu.Lock()
	defer smu.Unlock()
	s.cache.LockAll()
	defer s.cache.UnlockAll()

	if err := s.store.RestoreFile(context.WithoutCancel(ctx), path); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// ---- bracketed layer calls (locks held by the caller) ----

func (s *Service) track(layer Layer, op Op, key string) func(error) {
	ev := Event{Layer: layer, Op: op, Key: key, Start: time.Now()}
	s.obs.Started(ev)
	return func(err error) { s.obs.Finished(ev, err) }
}

func (s *Service) cacheGet(key string) (string, bool) {
	done := s.track(LayerCache, OpGet, key)
	v, ok := s.cache.Get(key)
	if ok {
		done(nil)
	} else {
		done(kverr.E(kverr.NotFound, "cache.get"))
	}
	return v, ok
}

func (s *Service) cachePut(key, value string) {
	done := s.track(LayerCache, OpPut, key)
	s.cache.Put(key, value)
	done(nil)
}

func (s *Service) cacheDel(key string) {
	done := s.track(LayerCache, OpDel, key)
	s.cache.Del(key)
	done(nil)
}

func (s *Service) storeGet(ctx context.Context, key string) (string, error) {
	done := s.track(LayerStore, OpGet, key)
	v, err := s.store.Get(ctx, key)
	done(err)
	return v, err
}

func (s *Service) storePut(ctx context.Context, key, value string) error {
	done := s.track(LayerStore, OpPut, key)
	err := s.store.Put(ctx, key, value)
	done(err)
	return err
}

func (s *Service) storeDel(ctx context.Context, key string) error {
	done := s.track(LayerStore, OpDel, key)
	err := s.store.Del(ctx, key)
	done(err)
	return err
}
