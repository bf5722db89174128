package event

import (
	"context"
	"log/slog"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/internal"
)

// Priority mirrors wisun.EventPriority but is kept local so the event
// package has no hard dependency on how callers choose priorities.
type Priority = wisun.EventPriority

const (
	PriorityLow    = wisun.EventPriorityLow
	PriorityMedium = wisun.EventPriorityMedium
	PriorityHigh   = wisun.EventPriorityHigh
)

// Handler is a unit of work run by the Loop. A Handler must never block: the
// loop is single-threaded and cooperative, so a blocking handler stalls
// every timer, RCP reply and socket in the process.
type Handler func()

// band is a FIFO queue of pending handlers for one priority level.
type band struct {
	q []Handler
}

func (b *band) push(h Handler) { b.q = append(b.q, h) }

func (b *band) pop() (Handler, bool) {
	if len(b.q) == 0 {
		return nil, false
	}
	h := b.q[0]
	// Avoid retaining the popped closure's captured state.
	b.q[0] = nil
	b.q = b.q[1:]
	if len(b.q) == 0 {
		b.q = b.q[:0]
	}
	return h, true
}

// Source is an external byte/event source the Loop multiplexes over: the
// RCP serial pipe, the TUN device, the management bus listener, the DHCPv6
// socket. Poll must not block; it is called once per loop iteration and
// should report whether it has work ready right now, enqueuing it at the
// given priority via post.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Poll is invoked by the loop once per iteration and should enqueue any
	// ready work via post, returning promptly either way.
	Poll(post func(Priority, Handler))
}

// Loop is the single-threaded cooperative scheduler every component in this
// module runs under. There is exactly one Loop per process.
type Loop struct {
	bands   [3]band
	sources []Source
	timers  *Timers
	log     *slog.Logger

	stats Stats
}

// Stats tracks loop activity for the management bus / metrics surface.
type Stats struct {
	EventsRun   uint64
	TimerFires  uint64
	SourcePolls uint64
}

// NewLoop returns an empty Loop with its timer wheel initialized.
func NewLoop(log *slog.Logger) *Loop {
	return &Loop{
		timers: NewTimers(),
		log:    log,
	}
}

// Timers returns the loop's timer wheel, for registering named timers.
func (l *Loop) Timers() *Timers { return l.timers }

// AddSource registers an external source to be polled every iteration.
func (l *Loop) AddSource(s Source) { l.sources = append(l.sources, s) }

// Post enqueues a handler on the given priority band. Safe to call from
// within a running handler (it only appends to a slice drained later in the
// same drain loop) but never from another goroutine.
func (l *Loop) Post(p Priority, h Handler) {
	if h == nil {
		panic("event: nil handler")
	}
	l.bands[bandIndex(p)].push(h)
}

func bandIndex(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Run executes the loop until ctx is cancelled. Each iteration: (a) the
// single poll-equivalent over every Source and the timer tick, each of
// which may enqueue handlers, then (b) fully drains the event queue,
// highest priority band first, before returning to (a). Draining between
// events is the only other suspension point; handlers themselves never
// block.
func (l *Loop) Run(ctx context.Context) {
	tick := l.timers.tickChan()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick:
			fired := l.timers.advance(now)
			l.stats.TimerFires += uint64(len(fired))
			for _, f := range fired {
				f := f
				l.bands[bandIndex(f.priority)].push(f.fn)
			}
		default:
		}
		for _, s := range l.sources {
			l.stats.SourcePolls++
			s.Poll(l.Post)
		}
		l.drain()
		select {
		case <-ctx.Done():
			return
		case now := <-tick:
			fired := l.timers.advance(now)
			l.stats.TimerFires += uint64(len(fired))
			for _, f := range fired {
				f := f
				l.bands[bandIndex(f.priority)].push(f.fn)
			}
			l.drain()
		default:
		}
	}
}

// drain runs every pending handler, high priority band first, and keeps
// draining as long as handlers post more work, matching the source's
// run-to-completion event queue semantics.
func (l *Loop) drain() {
	for {
		h, ok := l.nextHandler()
		if !ok {
			return
		}
		l.stats.EventsRun++
		func() {
			defer func() {
				if r := recover(); r != nil {
					internal.LogAttrs(l.log, slog.LevelError, "event: handler panic recovered",
						slog.Any("panic", r))
				}
			}()
			h()
		}()
	}
}

func (l *Loop) nextHandler() (Handler, bool) {
	for i := range l.bands {
		if h, ok := l.bands[i].pop(); ok {
			return h, true
		}
	}
	return nil, false
}
