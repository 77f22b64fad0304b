// internal/game/timers.go
package game

import (
	"sync"
	"time"
)

// turnTimers keeps at most one live turn timer per room. Each timer carries a
// generation number; a callback must confirm its generation is still current
// (under the room lock) before acting, which closes the fire-after-cancel race.
type turnTimers struct {
	mu     sync.Mutex
	next   uint64
	timers map[string]*turnTimer
}

type turnTimer struct {
	gen   uint64
	timer *time.Timer
}

func newTurnTimers() *turnTimers {
	return &turnTimers{timers: make(map[string]*turnTimer)}
}

// start cancels any timer for roomID and schedules fn(gen) after d.
func (t *turnTimers) start(roomID string, d time.Duration, fn func(gen uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[roomID]; ok {
		old.timer.Stop()
	}
	t.next++
	gen := t.next
	t.timers[roomID] = &turnTimer{
		gen:   gen,
		timer: time.AfterFunc(d, func() { fn(gen) }),
	}
	return gen
}

// cancel stops and forgets the timer for roomID.
func (t *turnTimers) cancel(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[roomID]; ok {
		old.timer.Stop()
		delete(t.timers, roomID)
	}
}

// current reports whether gen is the live timer generation for roomID.
func (t *turnTimers) current(roomID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tt, ok := t.timers[roomID]
	return ok && tt.gen == gen
}

// active reports whether roomID has a scheduled timer.
func (t *turnTimers) active(roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[roomID]
	return ok
}

// stopAll cancels every timer.
func (t *turnTimers) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, tt := range t.timers {
		tt.timer.Stop()
		delete(t.timers, id)
	}
}
