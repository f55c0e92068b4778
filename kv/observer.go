package kv

import (
	"time"

	"github.com/IvanBrykalov/kvcache/kverr"
	"github.com/IvanBrykalov/kvcache/log"
)

// Layer names the component an Event belongs to.
type Layer uint8

const (
	LayerService Layer = iota
	LayerCache
	LayerStore
)

func (l Layer) String() string {
	switch l {
	case LayerService:
		return "service"
	case LayerCache:
		return "cache"
	case LayerStore:
		return "store"
	}
	return "unknown"
}

// Op names the operation of an Event.
type Op uint8

const (
	OpGet Op = iota
	OpPut
	OpDel
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	case OpDel:
		return "del"
	}
	return "unknown"
}

// Event identifies one bracketed call.
type Event struct {
	Layer Layer
	Op    Op
	Key   string
	Start time.Time
}

// Observer is notified around every service, cache and store call. Cache
// and store events fire while the service holds its locks, so
// implementations must be fast and must not call back into the Service.
// A cache Get miss finishes with a NotFound error.
type Observer interface {
	Started(ev Event)
	Finished(ev Event, err error)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Started(Event)         {}
func (NopObserver) Finished(Event, error) {}

// Observers fans events out in order.
type Observers []Observer

func (o Observers) Started(ev Event) {
	for _, x := range o {
		x.Started(ev)
	}
}

func (o Observers) Finished(ev Event, err error) {
	for _, x := range o {
		x.Finished(ev, err)
	}
}

// LogObserver writes finished service-level events to a Logger at debug
// level, and failures other than client errors at warn.
type LogObserver struct {
	L log.Logger
	// All logs cache and store events too.
	All bool
}

func (LogObserver) Started(Event) {}

func (o LogObserver) Finished(ev Event, err error) {
	if ev.Layer != LayerService && !o.All {
		return
	}
	f := log.Fields{
		"layer": ev.Layer.String(),
		"op":    ev.Op.String(),
		"key":   ev.Key,
		"took":  time.Since(ev.Start).String(),
	}
	if err == nil {
		o.L.Debug("kv op", f)
		return
	}
	f["err"] = err
	if kverr.KindOf(err) == kverr.Unknown {
		o.L.Warn("kv op failed", f)
		return
	}
	o.L.Debug("kv op failed", f)
}

var (
	_ Observer = NopObserver{}
	_ Observer = Observers(nil)
	_ Observer = LogObserver{}
)
