package client

import "time"

// Clock abstracts time so tests can drive the full poll budget without real
// delays. The production clock is the standard library.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// backoffTimer adapts a Clock to the backoff library's Timer interface so
// retry sleeps also run on the injected clock.
type backoffTimer struct {
	clock Clock
	c     <-chan time.Time
}

func newBackoffTimer(clock Clock) *backoffTimer {
	return &backoffTimer{clock: clock}
}

func (t *backoffTimer) Start(d time.Duration) { t.c = t.clock.After(d) }
func (t *backoffTimer) C() <-chan time.Time   { return t.c }
func (t *backoffTimer) Stop()                 {}
