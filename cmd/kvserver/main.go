// Command kvserver serves the key-value store over TCP and exposes
// Prometheus metrics and a cache debug view over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/kvcache/cache"
	"github.com/IvanBrykalov/kvcache/config"
	"github.com/IvanBrykalov/kvcache/kv"
	"github.com/IvanBrykalov/kvcache/log"
	"github.com/IvanBrykalov/kvcache/log/logruslog"
	"github.com/IvanBrykalov/kvcache/log/zaplog"
	pmet "github.com/IvanBrykalov/kvcache/metrics/prom"
	"github.com/IvanBrykalov/kvcache/server"
	"github.com/IvanBrykalov/kvcache/store"
)

const namespace = "kvcache"

func main() {
	cfg, err := config.Load("kvserver", os.Args[1:], nil)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvserver:", err)
		os.Exit(2)
	}

	logger, flush, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvserver:", err)
		os.Exit(2)
	}
	defer func() { _ = flush() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exit", log.Fields{"err": err})
		_ = flush()
		os.Exit(1)
	}
}

func newLogger(cfg config.ServerConfig) (log.Logger, func() error, error) {
	switch cfg.Logger {
	case "logrus":
		l, err := logruslog.New(os.Stderr, cfg.LogLevel)
		return l, func() error { return nil }, err
	default:
		l, err := zaplog.New(cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		return l, l.Sync, nil
	}
}

// run wires the service from cfg and serves until ctx ends.
func run(ctx context.Context, cfg config.ServerConfig, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	table, closeTable, err := newTable(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeTable() }()

	svc, err := newService(cfg, store.New(table), reg, logger)
	if err != nil {
		return err
	}
	if err := restoreSnapshot(ctx, svc, cfg.SnapshotPath, logger); err != nil {
		return err
	}

	srv := server.New(svc, server.Options{
		Logger:       logger,
		MaxConns:     cfg.MaxConns,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe(gctx, cfg.Addr)
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		hs := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           httpHandler(reg, svc.Cache()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", log.Fields{"addr": cfg.MetricsAddr})
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	err = g.Wait()
	logger.Info("shutting down", log.Fields{"err": err})
	if derr := dumpSnapshot(ctx, svc, cfg.SnapshotPath, logger); derr != nil {
		err = errors.Join(err, derr)
	}
	return err
}

// newTable returns the backing table selected by cfg and its release func.
func newTable(ctx context.Context, cfg config.ServerConfig) (store.Table, func() error, error) {
	if cfg.Store != "redis" {
		return store.NewMemoryTable(), func() error { return nil }, nil
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	t, err := store.NewRedisTable(rdb, cfg.RedisPrefix)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return t, t.Close, nil
}

// newService builds the cache and service, registering metrics with reg.
func newService(cfg config.ServerConfig, st *store.Store, reg prometheus.Registerer, logger log.Logger) (*kv.Service, error) {
	pol, err := cache.PolicyByName[string](cfg.Policy, cfg.MaxElemsPerSet)
	if err != nil {
		return nil, err
	}
	c := cache.New(cache.Options[string]{
		NumSets:        cfg.NumSets,
		MaxElemsPerSet: cfg.MaxElemsPerSet,
		Policy:         pol,
		Metrics:        pmet.New(reg, namespace, "cache", nil),
	})
	return kv.New(kv.Options{
		Cache: c,
		Store: st,
		Observer: kv.Observers{
			pmet.NewObserver(reg, namespace, nil),
			kv.LogObserver{L: logger},
		},
	}), nil
}

func restoreSnapshot(ctx context.Context, svc *kv.Service, path string, logger log.Logger) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info("no snapshot to restore", log.Fields{"path": path})
		return nil
	}
	if err := svc.Restore(ctx, path); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	smu := svc.Store().Lock()
	smu.RLock()
	n, _ := svc.Store().Len(ctx)
	smu.RUnlock()
	logger.Info("snapshot restored", log.Fields{"path": path, "records": n})
	return nil
}

func dumpSnapshot(ctx context.Context, svc *kv.Service, path string, logger log.Logger) error {
	if path == "" {
		return nil
	}
	if err := svc.Dump(context.WithoutCancel(ctx), path); err != nil {
		return fmt.Errorf("dump %s: %w", path, err)
	}
	logger.Info("snapshot written", log.Fields{"path": path})
	return nil
}
