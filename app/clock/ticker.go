package clock

import (
	"log/slog"
	"sync"
	"time"
)

// Timer is the part of *time.Timer the ticker needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

type TickerOptions struct {
	Now       func() time.Time
	AfterFunc AfterFunc
}

// MinuteTicker publishes a fresh time sample on every wall-clock minute
// boundary. At most one timer is armed at a time and none after Stop.
type MinuteTicker struct {
	now       func() time.Time
	afterFunc AfterFunc

	mu      sync.Mutex
	current time.Time
	timer   Timer
	started bool
	stopped bool
	subs    map[int]chan time.Time
	nextID  int
}

func NewMinuteTicker(opts TickerOptions) *MinuteTicker {
	t := &MinuteTicker{
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		subs:      make(map[int]chan time.Time),
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.afterFunc == nil {
		t.afterFunc = func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		}
	}
	t.current = t.now()
	return t
}

// DelayUntilNextMinute returns how long to wait from now until the next
// minute boundary. A sample exactly on a boundary waits a full minute.
func DelayUntilNextMinute(now time.Time) time.Duration {
	ms := now.UnixMilli() % 60000
	if ms < 0 {
		ms += 60000
	}
	return time.Minute - time.Duration(ms)*time.Millisecond
}

func (t *MinuteTicker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.stopped {
		return
	}
	t.started = true
	t.arm()

	slog.Debug("Minute ticker started", "first_tick_in", DelayUntilNextMinute(t.now()).String())
}

// arm must be called with mu held.
func (t *MinuteTicker) arm() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.afterFunc(DelayUntilNextMinute(t.now()), t.tick)
}

func (t *MinuteTicker) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.current = t.now()
	for _, ch := range t.subs {
		// Latest sample wins for a consumer that has not drained the last one.
		select {
		case <-ch:
		default:
		}
		ch <- t.current
	}

	t.arm()
}

// Now returns the most recently published sample.
func (t *MinuteTicker) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Label is Label(createdAt, t.Now()).
func (t *MinuteTicker) Label(createdAt time.Time) string {
	return Label(createdAt, t.Now())
}

// Subscribe returns a channel receiving every published sample and a func
// that removes the subscription. The channel is closed by unsubscribe or
// Stop, whichever comes first.
func (t *MinuteTicker) Subscribe() (<-chan time.Time, func()) {
	ch := make(chan time.Time, 1)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}

// Stop cancels the pending timer and closes all subscriber channels.
func (t *MinuteTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}

	slog.Debug("Minute ticker stopped")
}
