package scheduler

import "time"

// Timer holds at most one live callback. Every Arm issues a new token and
// Disarm invalidates the current one, so a callback that was already in
// flight can be recognised as stale with Live.
//
// Timer is not safe for concurrent use; it belongs to the goroutine that owns
// the session. The scheduled callback itself only receives its token.
type Timer struct {
	clock Clock
	live  Stopper
	token uint64
}

func NewTimer(clock Clock) *Timer {
	return &Timer{clock: clock}
}

// Arm stops any previous callback and schedules fire(token) after d.
func (t *Timer) Arm(d time.Duration, fire func(token uint64)) uint64 {
	t.Disarm()
	t.token++
	tok := t.token
	t.live = t.clock.AfterFunc(d, func() { fire(tok) })
	return tok
}

// Disarm stops the live callback, if any. Reports whether one was armed.
func (t *Timer) Disarm() bool {
	if t.live == nil {
		return false
	}
	t.live.Stop()
	t.live = nil
	t.token++
	return true
}

// Live reports whether token belongs to the currently armed period.
func (t *Timer) Live(token uint64) bool {
	return t.live != nil && token == t.token
}

// Consume marks the armed period as fired. It returns false for stale tokens.
func (t *Timer) Consume(token uint64) bool {
	if !t.Live(token) {
		return false
	}
	t.live = nil
	t.token++
	return true
}

func (t *Timer) armed() bool { return t.live != nil }

// TurnScheduler is the per-session round timer: a Timer with a fixed timeout.
type TurnScheduler struct {
	*Timer
	Timeout time.Duration
}

const DefaultRoundTimeout = 30 * time.Second

func NewTurnScheduler(clock Clock, timeout time.Duration) *TurnScheduler {
	if timeout <= 0 {
		timeout = DefaultRoundTimeout
	}
	return &TurnScheduler{Timer: NewTimer(clock), Timeout: timeout}
}

// Start arms the round timeout.
func (s *TurnScheduler) Start(fire func(token uint64)) uint64 {
	return s.Arm(s.Timeout, fire)
}
