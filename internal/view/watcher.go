package view

import (
	"context"
	"sync"
	"time"

	"github.com/homematrix/panel-core/internal/upstream"
)

// DefaultPollInterval is the cadence at which an open view refreshes its
// entity states.
const DefaultPollInterval = 3 * time.Second

// Sink receives each successfully fetched snapshot.
type Sink func(upstream.ViewStates)

// Watcher polls one view's states on a fixed interval and delivers each
// snapshot to its sink. Poll failures are logged and the cadence
// continues; a stale panel beats a dead one.
type Watcher struct {
	ctrl     *Controller
	slug     string
	interval time.Duration
	sink     Sink
	log      Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher builds a watcher for slug. A non-positive interval falls
// back to DefaultPollInterval.
func NewWatcher(ctrl *Controller, slug string, interval time.Duration, sink Sink, log Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		ctrl:     ctrl,
		slug:     slug,
		interval: interval,
		sink:     sink,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins polling. The first poll fires immediately so a freshly
// opened view is not blank for a full interval. ctx cancellation stops
// the watcher the same way Stop does.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	vs, err := w.ctrl.Open(pollCtx, w.slug)
	if err != nil {
		w.log.Debug("view poll failed", "slug", w.slug, "error", err)
		return
	}
	// The sink only ever runs on this goroutine, so Stop's wait on done
	// guarantees no delivery after it returns.
	select {
	case <-w.stop:
	default:
		w.sink(vs)
	}
}

// Stop halts polling and blocks until the poll goroutine has exited. No
// sink delivery happens after Stop returns. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
