package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/kvcache/config"
	"github.com/IvanBrykalov/kvcache/log"
	"github.com/IvanBrykalov/kvcache/store"
)

func testConfig(t *testing.T) config.ServerConfig {
	t.Helper()
	cfg := config.Default()
	cfg.NumSets = 2
	cfg.MaxElemsPerSet = 2
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "snap.xml")
	return cfg
}

func TestNewService_Policies(t *testing.T) {
	t.Parallel()
	for _, p := range []string{"clock", "lru", "2q"} {
		cfg := testConfig(t)
		cfg.Policy = p
		svc, err := newService(cfg, store.NewMemory(), prometheus.NewRegistry(), log.NopLogger{})
		require.NoError(t, err, p)
		require.NoError(t, svc.Put(context.Background(), "k", "v"))
		v, err := svc.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
}

func TestSnapshotCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig(t)

	svc, err := newService(cfg, store.NewMemory(), prometheus.NewRegistry(), log.NopLogger{})
	require.NoError(t, err)
	// A missing snapshot is not an error.
	require.NoError(t, restoreSnapshot(ctx, svc, cfg.SnapshotPath, log.NopLogger{}))
	require.NoError(t, svc.Put(ctx, "a", "apple"))
	require.NoError(t, dumpSnapshot(ctx, svc, cfg.SnapshotPath, log.NopLogger{}))

	fresh, err := newService(cfg, store.NewMemory(), prometheus.NewRegistry(), log.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, restoreSnapshot(ctx, fresh, cfg.SnapshotPath, log.NopLogger{}))
	v, err := fresh.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "apple", v)
}

func TestNewTable_Redis(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Store = "redis"
	cfg.RedisAddr = mr.Addr()

	table, closeTable, err := newTable(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeTable() })

	svc, err := newService(cfg, store.New(table), prometheus.NewRegistry(), log.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.Put(context.Background(), "k", "v"))
	assert.Equal(t, "v", mr.HGet("kvcache:table", "k"))
}

func TestNewTable_RedisUnreachable(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.Store = "redis"
	cfg.RedisAddr = addr
	_, _, err := newTable(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHTTPHandler(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	svc, err := newService(cfg, store.NewMemory(), reg, log.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.Put(context.Background(), "a", "apple"))

	ts := httptest.NewServer(httpHandler(reg, svc.Cache()))
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/debug/cache")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view cacheView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, 2, view.NumSets)
	require.Len(t, view.Sets, 2)
	found := false
	for _, s := range view.Sets {
		assert.Len(t, s.Entries, 2)
		for _, e := range s.Entries {
			if e.Valid && e.Key == "a" {
				found = e.Value == "apple"
			}
		}
	}
	assert.True(t, found, "written key must show up in the view")

	mresp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	var b strings.Builder
	_, err = io.Copy(&b, mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, b.String(), `kvcache_ops_total{layer="service",op="put",result="ok"} 1`)
}
