package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/kvcache/cache"
)

// cacheView is the /debug/cache document.
type cacheView struct {
	NumSets        int         `json:"num_sets"`
	MaxElemsPerSet int         `json:"max_elems_per_set"`
	Stats          cache.Stats `json:"stats"`
	Sets           []setView   `json:"sets"`
}

type setView struct {
	Index   int         `json:"index"`
	Hand    int         `json:"hand"`
	Entries []entryView `json:"entries"`
}

type entryView struct {
	Key        string `json:"key,omitempty"`
	Value      string `json:"value,omitempty"`
	Referenced bool   `json:"referenced"`
	Valid      bool   `json:"valid"`
}

// httpHandler serves /metrics from reg and /debug/cache from c.
func httpHandler(reg *prometheus.Registry, c cache.Cache[string]) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/debug/cache", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(viewOf(c))
	})
	return mux
}

func viewOf(c cache.Cache[string]) cacheView {
	v := cacheView{NumSets: c.NumSets(), MaxElemsPerSet: c.MaxElemsPerSet(), Stats: c.Stats()}
	for _, s := range c.View() {
		sv := setView{Index: s.Index, Hand: s.Hand, Entries: make([]entryView, len(s.Entries))}
		for i, e := range s.Entries {
			sv.Entries[i] = entryView{Key: e.Key, Value: e.Value, Referenced: e.Referenced, Valid: e.Valid}
		}
		v.Sets = append(v.Sets, sv)
	}
	return v
}
