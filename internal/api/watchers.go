package api

import (
	"sync"

	"github.com/homematrix/panel-core/internal/view"
)

// watcherSet tracks the running per-view watchers so each view polls at
// most once no matter how many panels display it.
type watcherSet struct {
	mu       sync.Mutex
	watchers map[string]*view.Watcher
}

func newWatcherSet() *watcherSet {
	return &watcherSet{watchers: make(map[string]*view.Watcher)}
}

// ensure starts a watcher for slug if none is running. The factory is only
// invoked while holding the set lock, so concurrent subscriptions to the
// same view start exactly one watcher.
func (ws *watcherSet) ensure(slug string, start func() *view.Watcher) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.watchers[slug]; ok {
		return
	}
	ws.watchers[slug] = start()
}

// stopAll halts every watcher and empties the set. Blocks until all poll
// goroutines have exited.
func (ws *watcherSet) stopAll() {
	ws.mu.Lock()
	watchers := make([]*view.Watcher, 0, len(ws.watchers))
	for _, w := range ws.watchers {
		watchers = append(watchers, w)
	}
	ws.watchers = make(map[string]*view.Watcher)
	ws.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
}

// count returns the number of running watchers.
func (ws *watcherSet) count() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.watchers)
}
